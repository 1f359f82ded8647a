package main

import (
	"fmt"

	"github.com/aretw0/balupi/internal/presentation/graph"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the NAS lifecycle as a Mermaid diagram",
	Run: func(cmd *cobra.Command, args []string) {
		current, _ := cmd.Flags().GetString("current")

		var overlay *graph.Overlay
		if current != "" {
			overlay = &graph.Overlay{Current: domain.HostState(current)}
		}
		fmt.Print(graph.GenerateMermaid(overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight a state (e.g. online)")
}
