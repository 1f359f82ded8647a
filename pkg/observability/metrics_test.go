package observability_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.New()
	hooks := m.Hooks()

	hooks.OnTransition(context.Background(), &domain.TransitionEvent{From: domain.StateOnline, To: domain.StateOffline, Source: "heartbeat"})
	hooks.OnTransition(context.Background(), &domain.TransitionEvent{From: domain.StateOffline, To: domain.StateBooting, Forced: true})
	hooks.OnReject(context.Background(), &domain.RejectionEvent{From: domain.StateBooting, To: domain.StateShuttingDown})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("online", "offline", "heartbeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("offline", "booting", "forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("booting", "shutting_down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HostState.WithLabelValues("booting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HostState.WithLabelValues("offline")))
}

func TestMetrics_ProbeAndDNS(t *testing.T) {
	m := observability.New()
	m.ObserveProbe(false, 2)
	m.ObserveDNS("192.168.178.2", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbeFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DNSSwitches.WithLabelValues("192.168.178.2", "success")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.New()
	m.SetState(domain.StateOnline)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `balupi_host_state{state="online"} 1`)
}
