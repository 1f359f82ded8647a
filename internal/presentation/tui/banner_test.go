package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrintBanner_IncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, "#22c55e", StateColor(domain.StateOnline))
	assert.Equal(t, "#ef4444", StateColor(domain.StateOffline))
	assert.Equal(t, StateColor(domain.StateBooting), StateColor(domain.StateShuttingDown))
	assert.Equal(t, "#9ca3af", StateColor(domain.StateUnknown))
}

func TestStateLabel_KeepsStateName(t *testing.T) {
	assert.Contains(t, StateLabel(domain.StateOnline), "online")
}
