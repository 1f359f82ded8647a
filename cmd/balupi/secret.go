package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/balupi/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoSecret = errors.New("handshake secret not set (use BALUPI_HANDSHAKE_SECRET, --config or a terminal)")

// resolveSecret looks up the shared secret: environment first, then the
// config file, then an interactive prompt.
func resolveSecret(cmd *cobra.Command) (string, error) {
	if s := os.Getenv(config.EnvPrefix + "_HANDSHAKE_SECRET"); s != "" {
		return s, nil
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return "", err
		}
		if cfg.Handshake.Secret != "" {
			return cfg.Handshake.Secret, nil
		}
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoSecret
	}
	fmt.Fprint(os.Stderr, "Handshake secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "", errNoSecret
	}
	return s, nil
}
