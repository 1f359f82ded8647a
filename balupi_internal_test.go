package balupi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/balupi/internal/config"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRunner_TimeoutDefaults(t *testing.T) {
	registry := func(t *testing.T, body string) string {
		path := filepath.Join(t.TempDir(), "processes.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	cases := []struct {
		name    string
		file    string
		command string
		timeout time.Duration
	}{
		{name: "no registry", command: "rsync", timeout: handshake.TransferTimeout},
		{
			name:    "registry without timeout",
			file:    "processes:\n  - name: rsync\n    command: /opt/bin/rsync\n",
			command: "/opt/bin/rsync",
			timeout: handshake.TransferTimeout,
		},
		{
			name:    "registry timeout kept",
			file:    "processes:\n  - name: rsync\n    command: rsync\n    timeout: 5m\n",
			command: "rsync",
			timeout: 5 * time.Minute,
		},
		{
			name:    "other processes only",
			file:    "processes:\n  - name: notify\n    command: true\n",
			command: "rsync",
			timeout: handshake.TransferTimeout,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Companion{cfg: &config.Config{}}
			if tc.file != "" {
				c.cfg.Transfer.ProcessesFile = registry(t, tc.file)
			}

			runner, err := c.transferRunner()
			require.NoError(t, err)
			proc, ok := runner.Lookup(handshake.TransferTool)
			require.True(t, ok)
			assert.Equal(t, tc.command, proc.Command)
			assert.Equal(t, tc.timeout, proc.Timeout)
		})
	}
}
