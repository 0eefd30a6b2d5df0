package cues

import "sort"

// Segment is a continuous shot reported by a shot detector
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ShotChangesFromSegments turns detected shots into candidate cut instants:
// the pre-roll at 0, the middle of the gap between each pair of consecutive
// shots, and the end of the final shot. The result is ascending and free of
// duplicates.
func ShotChangesFromSegments(segments []Segment) []ShotChange {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	times := make([]float64, 0, len(sorted)+1)
	times = append(times, 0)
	for i, seg := range sorted {
		t := seg.End
		if i+1 < len(sorted) {
			t = seg.End + (sorted[i+1].Start-seg.End)/2
		}
		if t < 0 {
			continue
		}
		times = append(times, t)
	}

	return ShotChangesFromTimestamps(times)
}

// ShotChangesFromTimestamps sorts and deduplicates raw cut instants.
// Negative values are dropped.
func ShotChangesFromTimestamps(times []float64) []ShotChange {
	sorted := make([]float64, 0, len(times))
	for _, t := range times {
		if t >= 0 {
			sorted = append(sorted, t)
		}
	}
	sort.Float64s(sorted)

	events := make([]ShotChange, 0, len(sorted))
	for i, t := range sorted {
		if i > 0 && t == sorted[i-1] {
			continue
		}
		events = append(events, ShotChange{Timestamp: t})
	}
	return events
}
