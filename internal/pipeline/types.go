package pipeline

import (
	"time"

	"github.com/kikiluvv/cuepoint/internal/cues"
)

// Report is the full record of one cue selection run
type Report struct {
	RunID        string               `json:"run_id"`
	Input        string               `json:"input"`
	Config       cues.SelectionConfig `json:"config"`
	SearchRadius float64              `json:"search_radius"`
	ShotChanges  []cues.ShotChange    `json:"shot_changes"`
	Candidates   []cues.Candidate     `json:"candidates"`
	Decisions    []cues.Decision      `json:"decisions"`
	CuePoints    []cues.CuePoint      `json:"cue_points"`
	HasTrace     bool                 `json:"has_trace"`
	Duration     float64              `json:"duration"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	Elapsed      time.Duration        `json:"elapsed_ns"`
}

// Timestamps returns the selected cue points in seconds
func (r *Report) Timestamps() []float64 {
	return cues.Timestamps(r.CuePoints)
}

// Options configures one run
type Options struct {
	Selection cues.SelectionConfig
	// SearchRadius bounds how far a cut may move towards a quieter instant
	SearchRadius float64
}

// DefaultOptions returns the built-in selection settings
func DefaultOptions() Options {
	return Options{
		Selection:    cues.DefaultSelectionConfig(),
		SearchRadius: cues.DefaultSearchRadius,
	}
}

// Result pairs an input with its report or error
type Result struct {
	Input  string
	Report *Report
	Err    error
}

// Config holds pipeline-specific configuration
type Config struct {
	// Workers bounds how many assets RunAll analyzes at once
	Workers int
}
