package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/internal/cues"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pipeline orchestrates analysis, refinement and scheduling for one or
// more assets
type Pipeline struct {
	logger   zerolog.Logger
	config   *Config
	analyzer analyzer.Analyzer
	now      func() time.Time
}

// New creates a new pipeline instance
func New(logger zerolog.Logger, a analyzer.Analyzer, cfg *Config) *Pipeline {
	if cfg == nil {
		cfg = &Config{Workers: 4}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Pipeline{
		logger:   logging.WithComponent(logger, "pipeline"),
		config:   cfg,
		analyzer: a,
		now:      time.Now,
	}
}

// Run analyzes uri and selects its cue points
func (p *Pipeline) Run(ctx context.Context, uri string, opts Options) (*Report, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: input path cannot be empty", cues.ErrInvalidInput)
	}
	if err := opts.Selection.Validate(); err != nil {
		return nil, err
	}

	start := p.now()
	runID := uuid.NewString()
	log := logging.WithRun(p.logger, runID).With().Str("input", uri).Logger()

	log.Info().
		Float64("first_cue", opts.Selection.FirstCue).
		Float64("between_cues", opts.Selection.BetweenCues).
		Msg("starting cue selection")

	analysis, err := p.analyzer.Analyze(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", uri, err)
	}
	if err := analysis.Validate(); err != nil {
		return nil, fmt.Errorf("analysis of %s: %w", uri, err)
	}

	report := Select(analysis, opts)
	report.RunID = runID
	report.Input = uri
	report.CreatedAt = start.UTC()
	report.Elapsed = p.now().Sub(start)

	counts := cues.Tally(report.Decisions)
	log.Info().
		Int("shot_changes", len(report.ShotChanges)).
		Int("candidates", len(report.Candidates)).
		Int("cue_points", len(report.CuePoints)).
		Int("too_early", counts[cues.RejectedEarly]).
		Int("too_close", counts[cues.RejectedSpacing]).
		Int("too_loud", counts[cues.RejectedLoud]).
		Bool("has_trace", report.HasTrace).
		Dur("elapsed", report.Elapsed).
		Msg("cue selection complete")

	return report, nil
}

// Select refines and schedules an existing analysis. The trace is only
// consulted when the analysis says it has one.
func Select(analysis *analyzer.Analysis, opts Options) *Report {
	events := analysis.Events()

	var trace cues.Trace
	if analysis.HasTrace {
		trace = analysis.Trace
	}

	candidates := cues.RefineAll(events, trace, opts.SearchRadius)
	points, decisions := cues.ScheduleDecisions(candidates, opts.Selection)

	return &Report{
		Config:       opts.Selection,
		SearchRadius: opts.SearchRadius,
		ShotChanges:  events,
		Candidates:   candidates,
		Decisions:    decisions,
		CuePoints:    points,
		HasTrace:     analysis.HasTrace,
		Duration:     analysis.Duration,
		Metadata:     analysis.Metadata,
	}
}

// RunAll runs every input with at most Workers in flight. Results keep the
// order of uris; a failing asset is reported in its Result and does not stop
// the others.
func (p *Pipeline) RunAll(ctx context.Context, uris []string, opts Options) []Result {
	results := make([]Result, len(uris))

	var g errgroup.Group
	g.SetLimit(p.config.Workers)

	for i, uri := range uris {
		results[i].Input = uri
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			report, err := p.Run(ctx, uri, opts)
			if err != nil {
				p.logger.Error().Err(err).Str("input", uri).Msg("cue selection failed")
			}
			results[i].Report, results[i].Err = report, err
			return nil
		})
	}

	_ = g.Wait()
	return results
}
