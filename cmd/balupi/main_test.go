package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaders_VerifiesOnServerSide(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	now := time.Unix(1700000000, 0)

	var buf bytes.Buffer
	writeHeaders(&buf, secret, "post", "/api/handshake/nas-going-offline", []byte("{}"), now)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, handshake.HeaderTimestamp+": 1700000000", lines[0])

	sig := strings.TrimPrefix(lines[1], handshake.HeaderSignature+": ")
	v := handshake.NewVerifier(secret, handshake.WithVerifierClock(func() time.Time { return now }))
	assert.NoError(t, v.Verify("POST", "/api/handshake/nas-going-offline", "1700000000", sig, []byte("{}")))
}

func TestReadBody(t *testing.T) {
	body, err := readBody(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2}`), 0o644))
	body, err = readBody("@" + path)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(body))

	_, err = readBody("@" + filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrintStatus(t *testing.T) {
	snap := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, handshake.StatusReport{
		State:        domain.StateOffline,
		Since:        snap,
		LastSnapshot: &snap,
		InboxSizeMB:  5.24,
	})
	out := buf.String()
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "Inbox:         5.2 MB")
	assert.NotContains(t, out, "none")

	buf.Reset()
	printStatus(&buf, handshake.StatusReport{State: domain.StateOnline})
	assert.Contains(t, buf.String(), "Last snapshot: none")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "status", "notify", "sign", "wake", "graph", "version"} {
		assert.True(t, names[want], want)
	}
}
