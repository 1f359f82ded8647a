package handshake_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifyingServer answers every path with reply after checking the signature.
func verifyingServer(t *testing.T, key string, reply map[string]any) (*httptest.Server, func() []string) {
	t.Helper()
	verifier := handshake.NewVerifier(key)
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := verifier.VerifyRequest(r, body); err != nil {
			status := http.StatusUnauthorized
			var authErr *handshake.AuthError
			if errors.As(err, &authErr) {
				status = authErr.Status()
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
			return
		}
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		resp, ok := reply[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestClient_SignedRoundTrips(t *testing.T) {
	srv, bodies := verifyingServer(t, secret, map[string]any{
		"/api/handshake/nas-going-offline": handshake.OfflineAck{Acknowledged: true, DNSSwitched: true},
		"/api/handshake/nas-coming-online": handshake.OnlineAck{Acknowledged: true, InboxFlushed: true, FilesTransferred: 2, DNSSwitched: true},
		"/api/handshake/status":            handshake.StatusReport{State: domain.StateOnline, InboxSizeMB: 1.5},
		"/api/handshake/snapshot":          map[string]string{"reason": "update"},
	})
	c := handshake.NewClient(srv.URL+"/", secret)
	ctx := context.Background()

	off, err := c.GoingOffline(ctx, []byte(`{"reason":"update"}`))
	require.NoError(t, err)
	assert.True(t, off.DNSSwitched)

	on, err := c.ComingOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, on.FilesTransferred)

	report, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOnline, report.State)
	assert.InDelta(t, 1.5, report.InboxSizeMB, 0.001)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"update"}`, string(snap))

	assert.Equal(t, []string{`{"reason":"update"}`, "{}", "", ""}, bodies())
}

func TestClient_EmptySnapshotSendsEmptyObject(t *testing.T) {
	srv, bodies := verifyingServer(t, secret, map[string]any{
		"/api/handshake/nas-going-offline": handshake.OfflineAck{Acknowledged: true},
	})
	_, err := handshake.NewClient(srv.URL, secret).GoingOffline(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"{}"}, bodies())
}

func TestClient_RejectionIsResponseError(t *testing.T) {
	srv, _ := verifyingServer(t, secret, nil)

	_, err := handshake.NewClient(srv.URL, "wrong-secret-wrong-secret-wrong-s").Status(context.Background())
	var respErr *handshake.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.Code)
	assert.NotEmpty(t, respErr.Detail)
}

func TestClient_ClockSkewRejected(t *testing.T) {
	srv, _ := verifyingServer(t, secret, nil)
	stale := func() time.Time { return time.Now().Add(-2 * time.Minute) }

	_, err := handshake.NewClient(srv.URL, secret, handshake.WithClientClock(stale)).Status(context.Background())
	var respErr *handshake.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.Code)
}

func TestClient_Unreachable(t *testing.T) {
	c := handshake.NewClient("http://127.0.0.1:1", secret,
		handshake.WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.Status(context.Background())
	require.Error(t, err)
	var respErr *handshake.ResponseError
	assert.False(t, errors.As(err, &respErr))
}
