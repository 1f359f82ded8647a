package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/aretw0/balupi/pkg/heartbeat"
	"github.com/aretw0/balupi/pkg/observability"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/aretw0/balupi/pkg/telemetry"
	"github.com/aretw0/balupi/pkg/wol"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodyBytes caps handshake request bodies (snapshots included).
const MaxBodyBytes = 8 << 20

// Waker sends the wake signal to the host.
type Waker interface {
	Wake(ctx context.Context) error
}

// HostInspector reports host reachability.
type HostInspector interface {
	Inspect(ctx context.Context) heartbeat.HostInfo
}

// Telemetry is the power view exposed on /api/nas/power.
type Telemetry interface {
	ports.PowerTelemetry
	ports.DeviceLookup
}

// Server holds the handlers of the companion API.
type Server struct {
	Handshake *handshake.Service
	Verifier  *handshake.Verifier

	waker   Waker
	host    HostInspector
	power   Telemetry
	metrics *observability.Metrics
	logger  *slog.Logger
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithWaker enables POST /api/nas/wol.
func WithWaker(w Waker) Option {
	return func(s *Server) {
		s.waker = w
	}
}

// WithHostInspector enables GET /api/nas/status.
func WithHostInspector(h HostInspector) Option {
	return func(s *Server) {
		s.host = h
	}
}

// WithTelemetry feeds GET /api/nas/power.
func WithTelemetry(t Telemetry) Option {
	return func(s *Server) {
		s.power = t
	}
}

// WithMetrics records handshake outcomes and serves /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported on /api/health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates the API server.
func NewServer(svc *handshake.Service, verifier *handshake.Verifier, opts ...Option) *Server {
	s := &Server{
		Handshake: svc,
		Verifier:  verifier,
		logger:    logging.NewNop(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler builds the router.
func NewHandler(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.GetHealth)
		r.Get("/ping", s.GetPing)

		r.Route("/handshake", func(r chi.Router) {
			// Inline so the matched route pattern is known to the counter.
			signed := r.With(s.countHandshakes, s.authenticate)
			signed.Post("/nas-going-offline", s.NasGoingOffline)
			signed.Post("/nas-coming-online", s.NasComingOnline)
			signed.Get("/status", s.GetStatus)
			signed.Get("/snapshot", s.GetSnapshot)
		})

		r.Route("/nas", func(r chi.Router) {
			r.Get("/status", s.GetNasStatus)
			r.Post("/wol", s.WakeOnLan)
			r.Get("/power", s.GetPower)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+handshake.HeaderTimestamp+", "+handshake.HeaderSignature)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) countHandshakes(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Handshakes.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	})
}

// authenticate verifies the HMAC headers before any handler side effect.
// The body is buffered and handed on unchanged.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		if err := s.Verifier.VerifyRequest(r, body); err != nil {
			status := http.StatusUnauthorized
			var authErr *handshake.AuthError
			if errors.As(err, &authErr) {
				status = authErr.Status()
			}
			s.logger.Warn("Handshake rejected", "path", r.URL.Path, "error", err, "request_id", middleware.GetReqID(r.Context()))
			s.writeError(w, status, authErrorDetail(err))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func authErrorDetail(err error) string {
	switch {
	case errors.Is(err, handshake.ErrSecretNotConfigured):
		return "Handshake secret not configured"
	case errors.Is(err, handshake.ErrMissingHeaders):
		return "Missing HMAC headers"
	case errors.Is(err, handshake.ErrInvalidTimestamp):
		return "Invalid timestamp"
	case errors.Is(err, handshake.ErrTimestampOutOfWindow):
		return "Timestamp outside replay window"
	default:
		return "Invalid HMAC signature"
	}
}

// GetHealth handles GET /api/health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"service": "balupi",
	})
}

// GetPing handles GET /api/ping.
func (s *Server) GetPing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NasGoingOffline handles POST /api/handshake/nas-going-offline.
func (s *Server) NasGoingOffline(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Unreadable body")
		return
	}
	ack, err := s.Handshake.GoingOffline(r.Context(), body)
	if err != nil {
		s.logger.Error("Going-offline handshake failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store snapshot")
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

// NasComingOnline handles POST /api/handshake/nas-coming-online.
func (s *Server) NasComingOnline(w http.ResponseWriter, r *http.Request) {
	ack := s.Handshake.ComingOnline(r.Context())
	if s.metrics != nil {
		s.metrics.InboxFlushed.Add(float64(ack.FilesTransferred))
	}
	s.writeJSON(w, http.StatusOK, ack)
}

// GetStatus handles GET /api/handshake/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Handshake.Status())
}

// GetSnapshot handles GET /api/handshake/snapshot, serving the stored bytes verbatim.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.Handshake.Snapshot()
	if errors.Is(err, ports.ErrNoSnapshot) {
		s.writeError(w, http.StatusNotFound, "No snapshot available")
		return
	}
	if err != nil {
		s.logger.Error("Snapshot read failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Snapshot unreadable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// GetNasStatus handles GET /api/nas/status.
func (s *Server) GetNasStatus(w http.ResponseWriter, r *http.Request) {
	if s.host == nil {
		s.writeJSON(w, http.StatusOK, heartbeat.HostInfo{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.host.Inspect(r.Context()))
}

// WakeOnLan handles POST /api/nas/wol.
func (s *Server) WakeOnLan(w http.ResponseWriter, r *http.Request) {
	if s.waker == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": wol.ErrNoMAC.Error()})
		return
	}
	if err := s.waker.Wake(r.Context()); err != nil {
		s.logger.Warn("Wake-on-LAN failed", "error", err)
		s.writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetPower handles GET /api/nas/power. Missing telemetry degrades to "unknown".
func (s *Server) GetPower(w http.ResponseWriter, r *http.Request) {
	var state telemetry.PowerState
	if s.power == nil {
		state = telemetry.PowerState{Class: domain.PowerUnknown}
	} else {
		state = telemetry.Detect(s.power, s.power, domain.RoleHost)
	}
	s.writeJSON(w, http.StatusOK, state)
}
