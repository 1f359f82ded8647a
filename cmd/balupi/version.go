package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/balupi"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of balupi",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("balupi version %s\n", strings.TrimSpace(balupi.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
