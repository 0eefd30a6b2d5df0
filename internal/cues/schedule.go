package cues

import "math"

// Outcome is the final state of a candidate after a scheduling pass
type Outcome int

const (
	Accepted Outcome = iota
	RejectedEarly
	RejectedSpacing
	RejectedLoud
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedEarly:
		return "too_early"
	case RejectedSpacing:
		return "too_close"
	case RejectedLoud:
		return "too_loud"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes appear by name in JSON reports
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Decision records what happened to one candidate
type Decision struct {
	Candidate Candidate `json:"candidate"`
	Outcome   Outcome   `json:"outcome"`
}

// Schedule greedily selects cue points from candidates ordered by refined
// timestamp. Each candidate is accepted when it is not before cfg.FirstCue,
// lies at least cfg.BetweenCues after the previously accepted cue, and is not
// louder than cfg.VolumeThreshold. Candidates with unknown loudness are never
// rejected for being loud.
func Schedule(candidates []Candidate, cfg SelectionConfig) []CuePoint {
	points, _ := ScheduleDecisions(candidates, cfg)
	return points
}

// ScheduleDecisions runs the same pass as Schedule and also reports the
// outcome for every candidate, in input order.
func ScheduleDecisions(candidates []Candidate, cfg SelectionConfig) ([]CuePoint, []Decision) {
	points := make([]CuePoint, 0)
	decisions := make([]Decision, 0, len(candidates))
	lastAccepted := math.Inf(-1)

	for _, c := range candidates {
		outcome := Accepted
		switch {
		case c.Refined < cfg.FirstCue:
			outcome = RejectedEarly
		case c.Refined-lastAccepted < cfg.BetweenCues, c.Refined <= lastAccepted:
			// spacing is measured from the last accepted cue, so rejected
			// candidates never reset the clock
			outcome = RejectedSpacing
		case tooLoud(c.Level, cfg.VolumeThreshold):
			outcome = RejectedLoud
		}

		decisions = append(decisions, Decision{Candidate: c, Outcome: outcome})
		if outcome != Accepted {
			continue
		}
		points = append(points, CuePoint{Timestamp: c.Refined})
		lastAccepted = c.Refined
	}

	return points, decisions
}

func tooLoud(level Level, threshold *float64) bool {
	if threshold == nil {
		return false
	}
	db, ok := level.DB()
	return ok && db > *threshold
}

// Tally counts decisions per outcome
func Tally(decisions []Decision) map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, d := range decisions {
		counts[d.Outcome]++
	}
	return counts
}
