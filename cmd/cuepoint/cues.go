package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/kikiluvv/cuepoint/internal/cues"
	"github.com/kikiluvv/cuepoint/internal/pipeline"
	"github.com/kikiluvv/cuepoint/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	firstCueFlag    string
	betweenCuesFlag string
	volumeFlag      float64
	radiusFlag      float64
	shotsFlag       string
	noCacheFlag     bool
	jsonFlag        bool
	explainFlag     bool
)

var cuesCmd = &cobra.Command{
	Use:     "cues [video]...",
	Aliases: []string{"analyze"},
	Short:   "Select ad cue points for one or more videos",
	Long: `Select ad cue points for one or more videos.

Inputs may be local files, http(s) URLs, s3://bucket/key objects,
gs://bucket/object videos or JSON shots files. Loudness is only measured for
local and S3 sources.

--volume_threshold has no short form because -v is --verbose.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		opts, err := cuesOptions(cmd, cfg)
		if err != nil {
			return err
		}

		s := buildAnalyzer(log.Logger, cfg, !noCacheFlag, shotsFlag)
		defer s.Close()

		pipe := pipeline.New(log.Logger, s.analyzer, &pipeline.Config{Workers: cfg.Concurrency})
		results := pipe.RunAll(cmd.Context(), args, opts)

		out := cmd.OutOrStdout()
		if jsonFlag {
			err = writeJSON(out, results, explainFlag)
		} else {
			writeTables(out, results, explainFlag)
		}
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d inputs failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	f := cuesCmd.Flags()
	f.StringVarP(&firstCueFlag, "first_cue", "f", "", "earliest cue point, seconds or [HH:]MM:SS (default from config)")
	f.StringVarP(&betweenCuesFlag, "between_cues", "b", "", "minimum time between cue points, seconds or [HH:]MM:SS (default from config)")
	f.Float64Var(&volumeFlag, "volume_threshold", 0, "loudest acceptable level at a cue point, in dB")
	f.Float64Var(&radiusFlag, "radius", cues.DefaultSearchRadius, "seconds a cut may move towards a quieter instant")
	f.StringVar(&shotsFlag, "shots", "", "JSON shots file to use instead of scene detection")
	f.BoolVar(&noCacheFlag, "no-cache", false, "always re-analyze local files")
	f.BoolVar(&jsonFlag, "json", false, "print JSON instead of a table")
	f.BoolVar(&explainFlag, "explain", false, "show every candidate and why it was accepted or rejected")
}

// cuesOptions merges flags over the configured defaults
func cuesOptions(cmd *cobra.Command, cfg *config.Config) (pipeline.Options, error) {
	opts := pipeline.Options{
		Selection:    cfg.Selection(),
		SearchRadius: cfg.Cues.SearchRadius,
	}

	flags := cmd.Flags()
	if flags.Changed("first_cue") {
		v, err := util.ParseTimestamp(firstCueFlag)
		if err != nil {
			return opts, fmt.Errorf("--first_cue: %w", err)
		}
		opts.Selection.FirstCue = v
	}
	if flags.Changed("between_cues") {
		v, err := util.ParseTimestamp(betweenCuesFlag)
		if err != nil {
			return opts, fmt.Errorf("--between_cues: %w", err)
		}
		opts.Selection.BetweenCues = v
	}
	if flags.Changed("volume_threshold") {
		opts.Selection = opts.Selection.WithThreshold(volumeFlag)
	}
	if flags.Changed("radius") {
		opts.SearchRadius = radiusFlag
	}

	if err := opts.Selection.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

type jsonResult struct {
	Input     string           `json:"input"`
	RunID     string           `json:"run_id,omitempty"`
	CuePoints []float64        `json:"cue_points"`
	Error     string           `json:"error,omitempty"`
	Report    *pipeline.Report `json:"report,omitempty"`
}

func writeJSON(w io.Writer, results []pipeline.Result, explain bool) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		jr := jsonResult{Input: r.Input, CuePoints: []float64{}}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.RunID = r.Report.RunID
			jr.CuePoints = r.Report.Timestamps()
			if explain {
				jr.Report = r.Report
			}
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTables(w io.Writer, results []pipeline.Result, explain bool) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, r.Input)
		if r.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", r.Err)
			continue
		}

		if explain {
			fmt.Fprintln(w, explainTable(r.Report))
		} else {
			fmt.Fprintln(w, cueTable(r.Report))
		}

		summary := fmt.Sprintf("%d cue points from %d shot changes", len(r.Report.CuePoints), len(r.Report.ShotChanges))
		if !r.Report.HasTrace {
			summary += " (no loudness trace)"
		}
		fmt.Fprintln(w, summary)
	}
}

func cueTable(report *pipeline.Report) string {
	levels := make(map[float64]cues.Level, len(report.Candidates))
	for _, c := range report.Candidates {
		levels[c.Refined] = c.Level
	}

	rows := make([][]string, 0, len(report.CuePoints))
	for i, p := range report.CuePoints {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatSeconds(p.Timestamp),
			util.FormatSeconds(p.Timestamp),
			levels[p.Timestamp].String(),
		})
	}
	return renderTable(
		[]string{"#", "Seconds", "Timecode", "Level"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight},
	)
}

func explainTable(report *pipeline.Report) string {
	rows := make([][]string, 0, len(report.Decisions))
	for _, d := range report.Decisions {
		moved := ""
		if d.Candidate.Refined != d.Candidate.Raw {
			moved = fmt.Sprintf("%+.3f", d.Candidate.Refined-d.Candidate.Raw)
		}
		rows = append(rows, []string{
			formatSeconds(d.Candidate.Raw),
			formatSeconds(d.Candidate.Refined),
			moved,
			d.Candidate.Level.String(),
			strings.ReplaceAll(d.Outcome.String(), "_", " "),
		})
	}
	return renderTable(
		[]string{"Shot", "Refined", "Moved", "Level", "Outcome"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
