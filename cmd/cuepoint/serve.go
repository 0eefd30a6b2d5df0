package main

import (
	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/kikiluvv/cuepoint/internal/pipeline"
	"github.com/kikiluvv/cuepoint/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveLocalRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cue selection over HTTP",
	Long: `Serve cue selection over HTTP.

  POST /cues  {"path": "...", "first_cue": 0, "between_cues": 30, "volume_threshold": -20}
  GET  /      health check

The listen address comes from --addr, then $PORT, then server.addr.
Local paths are read only from under --local-root (or server.local_root),
relative paths are taken from it, and without a root only s3://, gs:// and
http(s) sources are accepted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveLocalRoot != "" {
			cfg.Server.LocalRoot = serveLocalRoot
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		s := buildAnalyzer(log.Logger, cfg, true, "")
		defer s.Close()

		pipe := pipeline.New(log.Logger, s.analyzer, &pipeline.Config{Workers: cfg.Concurrency})
		defaults := pipeline.Options{
			Selection:    cfg.Selection(),
			SearchRadius: cfg.Cues.SearchRadius,
		}

		srv := server.New(log.Logger, pipe, defaults, cfg.Server)
		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveLocalRoot, "local-root", "", "directory local request paths must stay under")
}
