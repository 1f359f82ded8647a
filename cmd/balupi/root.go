package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "balupi",
	Short: "balupi is the always-on companion of a home NAS",
	Long: `balupi watches the NAS, takes over its DNS alias while it sleeps,
buffers uploads in a local inbox and wakes it up again on demand.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the balupi config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("url", "http://127.0.0.1:8000", "Base URL of a running companion")
}
