package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/internal/pipeline"
)

const (
	maxBodyBytes     = 1 << 20
	msgMissingPath   = "Request must be JSON with a path key"
	msgInternalError = "An internal server error occurred."
	msgNoLocalFiles  = "Local paths are not served"
	msgOutsideRoot   = "Path is outside the served directory"
)

// cuesRequest accepts both the short field names and the long ones older
// clients send
type cuesRequest struct {
	Path    string `json:"path"`
	GCSPath string `json:"gcs_path"`

	FirstCue          *float64 `json:"first_cue"`
	MinTimeFirstCue   *float64 `json:"minimum_time_for_first_cue_point"`
	BetweenCues       *float64 `json:"between_cues"`
	MinTimeBetweenCue *float64 `json:"minimum_time_between_cue_points"`
	VolumeThreshold   *float64 `json:"volume_threshold"`
	SearchRadius      *float64 `json:"search_radius"`

	Explain bool `json:"explain"`
}

func (r *cuesRequest) uri() string {
	if p := strings.TrimSpace(r.Path); p != "" {
		return p
	}
	return strings.TrimSpace(r.GCSPath)
}

func (r *cuesRequest) options(defaults pipeline.Options) pipeline.Options {
	opts := defaults
	if v := firstSet(r.FirstCue, r.MinTimeFirstCue); v != nil {
		opts.Selection.FirstCue = *v
	}
	if v := firstSet(r.BetweenCues, r.MinTimeBetweenCue); v != nil {
		opts.Selection.BetweenCues = *v
	}
	if r.VolumeThreshold != nil {
		opts.Selection = opts.Selection.WithThreshold(*r.VolumeThreshold)
	}
	if r.SearchRadius != nil {
		opts.SearchRadius = *r.SearchRadius
	}
	return opts
}

func firstSet(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

type cuesResponse struct {
	RunID     string           `json:"run_id"`
	CuePoints []float64        `json:"cue_points"`
	Report    *pipeline.Report `json:"report,omitempty"`
}

func (s *Server) handleCues(w http.ResponseWriter, r *http.Request) {
	var req cuesRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil || req.uri() == "" {
		s.httpError(w, http.StatusBadRequest, msgMissingPath)
		return
	}

	opts := req.options(s.defaults)
	if err := opts.Selection.Validate(); err != nil {
		s.httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	uri := req.uri()
	if analyzer.IsLocal(uri) {
		path, msg := s.localPath(uri)
		if msg != "" {
			s.logger.Warn().Str("input", uri).Msg(msg)
			s.httpError(w, http.StatusBadRequest, msg)
			return
		}
		uri = path
	}

	report, err := s.runner.Run(r.Context(), uri, opts)
	if err != nil {
		s.logger.Error().Err(err).Str("input", uri).Msg("cue selection failed")
		if errors.Is(err, analyzer.ErrUnsupportedSource) {
			s.httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.httpError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	resp := cuesResponse{
		RunID:     report.RunID,
		CuePoints: report.Timestamps(),
	}
	if req.Explain {
		resp.Report = report
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// localPath resolves a request path against the served directory. Relative
// paths are taken from the root, and neither ".." nor a symlink may leave it.
// The second return is the client message when the path is refused.
func (s *Server) localPath(uri string) (string, string) {
	if s.cfg.LocalRoot == "" {
		return "", msgNoLocalFiles
	}
	root, err := filepath.Abs(s.cfg.LocalRoot)
	if err != nil {
		return "", msgNoLocalFiles
	}

	path := analyzer.LocalPath(uri)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !within(root, path) {
		return "", msgOutsideRoot
	}

	if real, err := filepath.EvalSymlinks(path); err == nil {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil || !within(realRoot, real) {
			return "", msgOutsideRoot
		}
	}
	return path, ""
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Int("status", status).Msg("failed to write response")
	}
}

func (s *Server) httpError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
