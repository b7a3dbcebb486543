package main

import (
	"fmt"
	"strings"

	"github.com/aeroforge/aeroforge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aeroforge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aeroforge version %s\n", strings.TrimSpace(aeroforge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
