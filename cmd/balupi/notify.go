package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a handshake message as the NAS would",
	Long:  `Sends a signed going-offline or coming-online message. Meant for NAS shutdown/boot hooks and manual testing.`,
}

var notifyOfflineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Announce a planned NAS shutdown",
	Run: func(cmd *cobra.Command, args []string) {
		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		var snapshot []byte
		if snapshotPath != "" {
			data, err := os.ReadFile(snapshotPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
				os.Exit(1)
			}
			snapshot = data
		}
		notify(cmd, func(ctx context.Context, c *handshake.Client) (any, error) {
			return c.GoingOffline(ctx, snapshot)
		})
	},
}

var notifyOnlineCmd = &cobra.Command{
	Use:   "online",
	Short: "Announce that the NAS finished booting",
	Run: func(cmd *cobra.Command, args []string) {
		notify(cmd, func(ctx context.Context, c *handshake.Client) (any, error) {
			return c.ComingOnline(ctx)
		})
	},
}

func notify(cmd *cobra.Command, send func(context.Context, *handshake.Client) (any, error)) {
	url, _ := cmd.Flags().GetString("url")
	secret, err := resolveSecret(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Coming online may include an inbox flush, so allow more than a status call.
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	ack, err := send(ctx, handshake.NewClient(url, secret, handshake.WithHTTPClient(&http.Client{})))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	data, _ := json.MarshalIndent(ack, "", "  ")
	fmt.Println(string(data))
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyOfflineCmd)
	notifyCmd.AddCommand(notifyOnlineCmd)
	notifyOfflineCmd.Flags().String("snapshot", "", "JSON file sent as the shutdown snapshot (default {})")
}
