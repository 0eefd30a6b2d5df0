package cues

import (
	"fmt"
	"math"
)

// ValidateShotChanges checks that events are finite, non-negative, strictly
// ascending and free of duplicates
func ValidateShotChanges(events []ShotChange) error {
	prev := math.Inf(-1)
	for i, e := range events {
		if math.IsNaN(e.Timestamp) || math.IsInf(e.Timestamp, 0) || e.Timestamp < 0 {
			return fmt.Errorf("%w: shot change %d has invalid timestamp %v", ErrInvalidInput, i, e.Timestamp)
		}
		if e.Timestamp <= prev {
			return fmt.Errorf("%w: shot change %d at %.3fs is not after %.3fs", ErrInvalidInput, i, e.Timestamp, prev)
		}
		prev = e.Timestamp
	}
	return nil
}

// ValidateTrace checks that samples are ordered by timestamp and carry numeric levels
func ValidateTrace(trace Trace) error {
	prev := math.Inf(-1)
	for i, s := range trace {
		if math.IsNaN(s.Timestamp) || math.IsInf(s.Timestamp, 0) || s.Timestamp < 0 {
			return fmt.Errorf("%w: loudness sample %d has invalid timestamp %v", ErrInvalidInput, i, s.Timestamp)
		}
		if math.IsNaN(s.Level) {
			return fmt.Errorf("%w: loudness sample %d at %.3fs has no level", ErrInvalidInput, i, s.Timestamp)
		}
		if s.Timestamp < prev {
			return fmt.Errorf("%w: loudness sample %d at %.3fs precedes %.3fs", ErrInvalidInput, i, s.Timestamp, prev)
		}
		prev = s.Timestamp
	}
	return nil
}

// ValidateCandidates checks that candidates are ordered by refined timestamp
func ValidateCandidates(candidates []Candidate) error {
	prev := math.Inf(-1)
	for i, c := range candidates {
		if math.IsNaN(c.Refined) {
			return fmt.Errorf("%w: candidate %d has no timestamp", ErrInvalidInput, i)
		}
		if c.Refined < prev {
			return fmt.Errorf("%w: candidate %d at %.3fs precedes %.3fs", ErrInvalidInput, i, c.Refined, prev)
		}
		prev = c.Refined
	}
	return nil
}
