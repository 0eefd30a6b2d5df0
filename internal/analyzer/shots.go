package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kikiluvv/cuepoint/internal/cues"
)

// ShotsFileAnalyzer reads shot boundaries produced by an external detector.
// The file holds either a JSON array of {"start","end"} segments, an array
// of boundary timestamps in seconds, or an object with a "segments" or
// "shot_changes" field. It never yields a loudness trace.
type ShotsFileAnalyzer struct{}

// Analyze reads the shots file at uri
func (ShotsFileAnalyzer) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsLocal(uri) {
		return nil, fmt.Errorf("%w: shots file must be local: %s", ErrUnsupportedSource, uri)
	}

	data, err := os.ReadFile(LocalPath(uri))
	if err != nil {
		return nil, fmt.Errorf("read shots file: %w", err)
	}

	result, err := ParseShots(data)
	if err != nil {
		return nil, fmt.Errorf("parse shots file %s: %w", uri, err)
	}
	result.setMeta("shots_file", uri)
	return result, nil
}

// ParseShots decodes any of the accepted shots file layouts
func ParseShots(data []byte) (*Analysis, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty shots file", cues.ErrInvalidInput)
	}

	if data[0] == '{' {
		var doc struct {
			Segments    []cues.Segment `json:"segments"`
			ShotChanges []float64      `json:"shot_changes"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return fromParsed(doc.Segments, doc.ShotChanges)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &Analysis{}, nil
	}

	first := bytes.TrimSpace(raw[0])
	if len(first) > 0 && first[0] == '{' {
		var segments []cues.Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return nil, err
		}
		return fromParsed(segments, nil)
	}

	var times []float64
	if err := json.Unmarshal(data, &times); err != nil {
		return nil, err
	}
	return fromParsed(nil, times)
}

func fromParsed(segments []cues.Segment, times []float64) (*Analysis, error) {
	result := &Analysis{Segments: segments, ShotChanges: times}
	for _, s := range segments {
		if s.End < s.Start {
			return nil, fmt.Errorf("%w: segment ends before it starts: %+v", cues.ErrInvalidInput, s)
		}
		result.Duration = max(result.Duration, s.End)
	}
	for _, t := range times {
		result.Duration = max(result.Duration, t)
	}
	return result, nil
}

// ShotsOverride analyzes the asset with next for its loudness trace and
// metadata but takes the shot boundaries from a shots file
type ShotsOverride struct {
	ShotsPath string
	Next      Analyzer
}

// Analyze merges the shots file into next's analysis of uri
func (o ShotsOverride) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	shots, err := ShotsFileAnalyzer{}.Analyze(ctx, o.ShotsPath)
	if err != nil {
		return nil, err
	}

	result, err := o.Next.Analyze(ctx, uri)
	if err != nil {
		return nil, err
	}

	result.Segments = shots.Segments
	result.ShotChanges = shots.ShotChanges
	result.setMeta("shots_file", o.ShotsPath)
	return result, nil
}
