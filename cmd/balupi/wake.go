package main

import (
	"fmt"
	"os"

	"github.com/aretw0/balupi/internal/config"
	"github.com/aretw0/balupi/pkg/wol"
	"github.com/spf13/cobra"
)

var wakeCmd = &cobra.Command{
	Use:   "wake [mac]",
	Short: "Send a Wake-on-LAN packet to the NAS",
	Long: `Broadcasts a magic packet directly from this machine, without going through
a running companion. The MAC defaults to host.mac from the config.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("broadcast")

		var mac string
		if len(args) > 0 {
			mac = args[0]
		} else {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			mac = cfg.Host.MAC
		}

		if mac == "" {
			fmt.Fprintf(os.Stderr, "Wake failed: %v\n", wol.ErrNoMAC)
			os.Exit(1)
		}
		if err := wol.Send(cmd.Context(), mac, addr); err != nil {
			fmt.Fprintf(os.Stderr, "Wake failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Magic packet sent to %s via %s\n", mac, addr)
	},
}

func init() {
	rootCmd.AddCommand(wakeCmd)
	wakeCmd.Flags().String("broadcast", wol.DefaultAddr, "Broadcast address and port")
}
