package cues

import (
	"math"
	"sort"
)

// Refine nudges a shot change to the quietest sample within radius seconds,
// never leaving the span between the neighbouring shot changes prevShot and
// nextShot. Pass -Inf/+Inf when there is no neighbour on that side.
//
// Without a trace the raw timestamp is returned with an unknown level. When
// the window holds no samples the raw timestamp is kept and the level of the
// nearest sample is reported instead.
func Refine(event ShotChange, trace Trace, radius, prevShot, nextShot float64) Candidate {
	raw := event.Timestamp
	candidate := Candidate{Raw: raw, Refined: raw}
	if len(trace) == 0 {
		return candidate
	}
	if radius < 0 || math.IsNaN(radius) {
		radius = 0
	}

	lo := math.Max(raw-radius, prevShot)
	hi := math.Min(raw+radius, nextShot)

	best := -1
	start := sort.Search(len(trace), func(i int) bool { return trace[i].Timestamp >= lo })
	for i := start; i < len(trace) && trace[i].Timestamp <= hi; i++ {
		if best < 0 || quieter(trace[i], trace[best], raw) {
			best = i
		}
	}

	if best >= 0 {
		candidate.Refined = trace[best].Timestamp
		candidate.Level = KnownLevel(trace[best].Level)
		return candidate
	}

	// sparse trace: keep the cut where it is, borrow the closest reading
	nearest := nearestSample(trace, raw)
	candidate.Level = KnownLevel(trace[nearest].Level)
	return candidate
}

// quieter orders samples by level, then by distance to raw, then by time
func quieter(a, b LoudnessSample, raw float64) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	da, db := math.Abs(a.Timestamp-raw), math.Abs(b.Timestamp-raw)
	if da != db {
		return da < db
	}
	return a.Timestamp < b.Timestamp
}

func nearestSample(trace Trace, t float64) int {
	i := sort.Search(len(trace), func(i int) bool { return trace[i].Timestamp >= t })
	switch {
	case i == 0:
		return 0
	case i == len(trace):
		return len(trace) - 1
	}
	if t-trace[i-1].Timestamp <= trace[i].Timestamp-t {
		return i - 1
	}
	return i
}

// RefineAll refines every shot change using its neighbours as window bounds.
// events must be ascending.
//
// A leading event at 0 is the pre-roll slot rather than a cut. It stays at 0
// with an unknown level, so loudness never moves or rejects it.
//
// Windows of adjacent cuts overlap, so two cuts can settle on the same
// sample. Only the earlier shot keeps that instant; the result stays ordered
// by refined timestamp because a cut can never move past a neighbour.
func RefineAll(events []ShotChange, trace Trace, radius float64) []Candidate {
	if len(events) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(events))
	for i, event := range events {
		if i == 0 && event.Timestamp == 0 {
			candidates = append(candidates, Candidate{})
			continue
		}
		prevShot, nextShot := math.Inf(-1), math.Inf(1)
		if i > 0 {
			prevShot = events[i-1].Timestamp
		}
		if i+1 < len(events) {
			nextShot = events[i+1].Timestamp
		}
		candidates = append(candidates, Refine(event, trace, radius, prevShot, nextShot))
	}

	out := candidates[:1]
	for _, c := range candidates[1:] {
		if c.Refined <= out[len(out)-1].Refined {
			continue
		}
		out = append(out, c)
	}
	return out
}
