package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Poll every configured stream once and report errors",
	Long: `Load the configuration, run a single poll pass over every configured
monitor's streams, print any errors found, and exit non-zero if any
monitor produced at least one.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	appCfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(appCfg.Server.LogFormat)
	ctx := context.Background()

	anyErrors := false
	for _, def := range appCfg.Monitor {
		monCfg := def.ToMonitorConfig(appCfg.Defaults)
		m := engine.New(def.ID, monCfg, def.ToStreamItems(), logger.With("monitor_id", def.ID))

		errs := m.PollOnce(ctx)
		if len(errs) == 0 {
			fmt.Printf("%s: OK\n", def.ID)
			continue
		}

		anyErrors = true
		fmt.Printf("%s: %d error(s)\n", def.ID, len(errs))
		for _, e := range errs {
			fmt.Printf("  [%s] %s: %s\n", e.ErrorType, e.Variant, e.Details)
		}
	}

	if anyErrors {
		os.Exit(1)
	}
	return nil
}
