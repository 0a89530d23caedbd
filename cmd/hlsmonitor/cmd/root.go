// Package cmd implements the hlsmonitor CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hlsmonitor",
	Short: "Monitors live HLS playlists for manifest pathologies",
	Long: `hlsmonitor polls live HLS master and media playlists on an interval,
runs a battery of checks across consecutive snapshots (segment continuity,
media-sequence regressions, stale manifests, SCTE-35 ad-break markers, and
more), and reports what it finds over a REST API and signed webhooks.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the TOML configuration file")
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
