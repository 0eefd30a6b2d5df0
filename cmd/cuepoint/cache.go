package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kikiluvv/cuepoint/internal/cache"
	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the analysis cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			trace := "no"
			if e.HasTrace {
				trace = "yes"
			}
			rows = append(rows, []string{
				e.Key.URI,
				strconv.Itoa(e.Shots),
				fmt.Sprintf("%.1fs", e.Duration),
				trace,
				e.CreatedAt.Local().Format(time.DateTime),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"File", "Shots", "Duration", "Trace", "Cached"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int64("removed", removed).Str("path", store.Path()).Msg("cache cleared")
		return nil
	},
}

func openCache(cmd *cobra.Command) (*cache.Store, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg.Cache.Path == "" {
		return nil, fmt.Errorf("cache.path is not configured")
	}
	return cache.Open(cfg.Cache.Path)
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
