package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/balupi/internal/presentation/tui"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the companion's view of the NAS",
	Run: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		secret, err := resolveSecret(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		report, err := handshake.NewClient(url, secret).Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching status: %v\n", err)
			os.Exit(1)
		}
		printStatus(os.Stdout, report)
	},
}

func printStatus(w io.Writer, r handshake.StatusReport) {
	fmt.Fprintf(w, "NAS state:     %s\n", tui.StateLabel(r.State))
	fmt.Fprintf(w, "Since:         %s\n", r.Since.Local().Format(time.RFC3339))
	if r.LastSnapshot != nil {
		fmt.Fprintf(w, "Last snapshot: %s\n", r.LastSnapshot.Local().Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Last snapshot: none")
	}
	fmt.Fprintf(w, "Inbox:         %.1f MB\n", r.InboxSizeMB)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
