package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/balupi"
	"github.com/aretw0/balupi/internal/config"
	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the companion",
	Long:  `Starts the HTTP API, the heartbeat loop and the power telemetry poller until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("config")
		quiet, _ := cmd.Flags().GetBool("quiet")

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := logging.NewWithFile(logging.ParseLevel(cfg.Log.Level), cfg.Log.File)

		if !quiet {
			tui.PrintBanner(os.Stderr, balupi.Version)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		companion, err := balupi.New(ctx, cfg, balupi.WithLogger(logger))
		if err != nil {
			logger.Error("Failed to initialize companion", "error", err)
			os.Exit(1)
		}
		defer companion.Close()

		if err := companion.Run(ctx); err != nil {
			logger.Error("Companion stopped with error", "error", err)
			companion.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolP("quiet", "q", false, "Skip the startup banner")
}
