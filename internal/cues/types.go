package cues

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks precondition violations in inputs handed to the engine
var ErrInvalidInput = errors.New("invalid input")

// Default selection and refinement settings
const (
	DefaultFirstCue     = 0.0
	DefaultBetweenCues  = 30.0
	DefaultSearchRadius = 1.0
)

// ShotChange is a detected cut, in seconds from the start of the asset
type ShotChange struct {
	Timestamp float64 `json:"timestamp"`
}

// LoudnessSample is one audio level reading of a loudness trace
type LoudnessSample struct {
	Timestamp float64 `json:"timestamp"`
	Level     float64 `json:"level_db"`
}

// Trace is a loudness trace ordered by timestamp. A nil trace means no
// loudness information is available for the asset.
type Trace []LoudnessSample

// Level is an audio level in dB that may be unknown. The zero value is unknown.
type Level struct {
	db    float64
	known bool
}

// KnownLevel returns a level holding db
func KnownLevel(db float64) Level {
	return Level{db: db, known: true}
}

// DB returns the level and whether it is known
func (l Level) DB() (float64, bool) {
	return l.db, l.known
}

// Known reports whether the level carries a reading
func (l Level) Known() bool {
	return l.known
}

func (l Level) String() string {
	if !l.known {
		return "unknown"
	}
	return fmt.Sprintf("%.1f dB", l.db)
}

// MarshalJSON encodes unknown levels as null
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.known {
		return []byte("null"), nil
	}
	return json.Marshal(l.db)
}

// UnmarshalJSON accepts a number or null
func (l *Level) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Level{}
		return nil
	}
	var db float64
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("decode level: %w", err)
	}
	*l = KnownLevel(db)
	return nil
}

// Candidate is a shot change after loudness refinement
type Candidate struct {
	Raw     float64 `json:"raw_timestamp"`
	Refined float64 `json:"refined_timestamp"`
	Level   Level   `json:"level_db"`
}

// CuePoint is an accepted ad insertion point
type CuePoint struct {
	Timestamp float64 `json:"timestamp"`
}

// SelectionConfig holds the constraints applied by Schedule
type SelectionConfig struct {
	FirstCue        float64  `json:"first_cue" yaml:"first_cue"`
	BetweenCues     float64  `json:"between_cues" yaml:"between_cues"`
	VolumeThreshold *float64 `json:"volume_threshold" yaml:"volume_threshold"`
}

// DefaultSelectionConfig returns a pre-roll friendly configuration with 30s
// spacing and no loudness ceiling
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		FirstCue:    DefaultFirstCue,
		BetweenCues: DefaultBetweenCues,
	}
}

// WithThreshold returns a copy of c with the loudness ceiling set to db
func (c SelectionConfig) WithThreshold(db float64) SelectionConfig {
	c.VolumeThreshold = &db
	return c
}

// Validate rejects negative or non-finite settings
func (c SelectionConfig) Validate() error {
	if math.IsNaN(c.FirstCue) || math.IsInf(c.FirstCue, 0) || c.FirstCue < 0 {
		return fmt.Errorf("%w: first cue must be a non-negative number of seconds, got %v", ErrInvalidInput, c.FirstCue)
	}
	if math.IsNaN(c.BetweenCues) || math.IsInf(c.BetweenCues, 0) || c.BetweenCues < 0 {
		return fmt.Errorf("%w: time between cues must be a non-negative number of seconds, got %v", ErrInvalidInput, c.BetweenCues)
	}
	if c.VolumeThreshold != nil && math.IsNaN(*c.VolumeThreshold) {
		return fmt.Errorf("%w: volume threshold is not a number", ErrInvalidInput)
	}
	return nil
}

// Timestamps flattens a schedule into seconds
func Timestamps(points []CuePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Timestamp
	}
	return out
}
