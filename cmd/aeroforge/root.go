package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aeroforge",
	Short: "AeroForge is a pipeline engine for AI-assisted materials discovery",
	Long: `AeroForge turns a natural-language material request into a validated
alloy formulation and a simulated performance report, driving external
collaborators through a fixed discovery-to-synthesis pipeline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
}
