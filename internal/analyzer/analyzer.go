// Package analyzer turns a media reference into the shot boundaries and
// loudness readings the cue scheduler works from.
package analyzer

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/kikiluvv/cuepoint/internal/cues"
)

// ErrUnsupportedSource is returned for URIs no analyzer can read
var ErrUnsupportedSource = errors.New("unsupported source")

// Analysis is everything learned about one asset
type Analysis struct {
	// Segments are the detected shots, used when ShotChanges is empty
	Segments []cues.Segment `json:"segments,omitempty"`
	// ShotChanges are boundary timestamps taken as-is, when the source
	// provides them directly
	ShotChanges []float64         `json:"shot_changes,omitempty"`
	Trace       cues.Trace        `json:"trace,omitempty"`
	HasTrace    bool              `json:"has_trace"`
	Duration    float64           `json:"duration"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Events returns the shot changes the analysis describes, ascending and
// deduplicated
func (a *Analysis) Events() []cues.ShotChange {
	if len(a.ShotChanges) > 0 {
		return cues.ShotChangesFromTimestamps(a.ShotChanges)
	}
	return cues.ShotChangesFromSegments(a.Segments)
}

// Validate checks the analysis is fit to schedule from
func (a *Analysis) Validate() error {
	if err := cues.ValidateShotChanges(a.Events()); err != nil {
		return err
	}
	if a.HasTrace {
		return cues.ValidateTrace(a.Trace)
	}
	return nil
}

// Clone returns a deep copy
func (a *Analysis) Clone() *Analysis {
	out := *a
	out.Segments = append([]cues.Segment(nil), a.Segments...)
	out.ShotChanges = append([]float64(nil), a.ShotChanges...)
	out.Trace = append(cues.Trace(nil), a.Trace...)
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func (a *Analysis) setMeta(key, value string) {
	if value == "" {
		return
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}

// Analyzer extracts shot boundaries and, where it can, a loudness trace
type Analyzer interface {
	Analyze(ctx context.Context, uri string) (*Analysis, error)
}

// Func adapts a plain function to Analyzer
type Func func(ctx context.Context, uri string) (*Analysis, error)

func (f Func) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	return f(ctx, uri)
}

// Scheme returns the lower-cased URI scheme, or "" for local paths. Windows
// drive letters are not schemes.
func Scheme(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// IsRemote reports whether uri is streamed over HTTP rather than read locally
func IsRemote(uri string) bool {
	switch Scheme(uri) {
	case "http", "https":
		return true
	}
	return false
}

// IsLocal reports whether uri names a file on this machine
func IsLocal(uri string) bool {
	s := Scheme(uri)
	return s == "" || s == "file"
}

// LocalPath strips a file:// prefix
func LocalPath(uri string) string {
	if Scheme(uri) == "file" {
		if u, err := url.Parse(uri); err == nil {
			return filepath.FromSlash(u.Path)
		}
	}
	return uri
}
