package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aeroforge/aeroforge"
	"github.com/aeroforge/aeroforge/pkg/config"
)

// runCmd executes one pipeline run and prints the final state as JSON on
// stdout. Logs go to stderr.
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run one discovery pipeline for a material request",
	Long: `Executes the full pipeline for the given natural-language material
request and prints the final session state as JSON. A run that fails
partway still prints the state accumulated up to the failure.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetInt("max-iterations"); v > 0 {
			cfg.Refine.MaxIterations = v
		}
		if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
			cfg.OutputDir = v
		}

		engine, err := aeroforge.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		state, runErr := engine.Run(ctx, strings.Join(args, " "))
		if state != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(state); err != nil {
				return err
			}
		}
		if runErr != nil {
			return fmt.Errorf("run did not complete: %w", runErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("max-iterations", 0, "Override the refinement iteration cap")
	runCmd.Flags().String("output-dir", "", "Directory for report artifacts")
}
