package dns

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/balupi/internal/logging"
)

// ErrRecordAbsent is returned by a Backend when the record to remove does not exist.
var ErrRecordAbsent = errors.New("dns record absent")

// Backend manages local A records on a DNS control plane.
type Backend interface {
	// SetHost adds (or confirms) the record alias -> ip.
	SetHost(ctx context.Context, ip, alias string) error
	// RemoveHost deletes the record alias -> ip, returning ErrRecordAbsent if missing.
	RemoveHost(ctx context.Context, ip, alias string) error
}

// Failover is the alias switcher used by the heartbeat and the handshake.
type Failover struct {
	backend  Backend
	alias    string
	known    []string
	dryRun   bool
	timeout  time.Duration
	logger   *slog.Logger
	onSwitch func(target string, ok bool)
}

// Option configures Failover.
type Option func(*Failover)

// WithKnownAddresses lists the addresses whose stale records are cleared before a switch
// (typically the host and the companion itself).
func WithKnownAddresses(ips ...string) Option {
	return func(f *Failover) {
		f.known = append(f.known, ips...)
	}
}

// WithDryRun makes every switch succeed without contacting the backend.
func WithDryRun(dryRun bool) Option {
	return func(f *Failover) {
		f.dryRun = dryRun
	}
}

// WithTimeout bounds a whole switch (removals plus add).
func WithTimeout(d time.Duration) Option {
	return func(f *Failover) {
		f.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Failover) {
		f.logger = logger
	}
}

// WithSwitchObserver is called after every switch attempt.
func WithSwitchObserver(fn func(target string, ok bool)) Option {
	return func(f *Failover) {
		f.onSwitch = fn
	}
}

// NewFailover creates a switcher for alias. A nil backend forces dry-run mode.
func NewFailover(backend Backend, alias string, opts ...Option) *Failover {
	f := &Failover{
		backend: backend,
		alias:   alias,
		timeout: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.backend == nil {
		f.dryRun = true
	}
	return f
}

// Alias returns the managed hostname.
func (f *Failover) Alias() string {
	return f.alias
}

// PointAliasAt implements ports.AliasSwitcher.
func (f *Failover) PointAliasAt(ctx context.Context, ip string) bool {
	ok := f.pointAliasAt(ctx, ip)
	if f.onSwitch != nil {
		f.onSwitch(ip, ok)
	}
	return ok
}

func (f *Failover) pointAliasAt(ctx context.Context, ip string) bool {
	if f.dryRun {
		f.logger.Info("[DEV] DNS switch not executed", "alias", f.alias, "target", ip)
		return true
	}
	if ip == "" {
		f.logger.Error("DNS switch failed: empty target address", "alias", f.alias)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for _, old := range f.known {
		if old == "" {
			continue
		}
		err := f.backend.RemoveHost(ctx, old, f.alias)
		switch {
		case err == nil:
			f.logger.Debug("Removed DNS record", "alias", f.alias, "ip", old)
		case errors.Is(err, ErrRecordAbsent):
		default:
			f.logger.Debug("Stale DNS record removal failed", "alias", f.alias, "ip", old, "error", err)
		}
	}

	if err := f.backend.SetHost(ctx, ip, f.alias); err != nil {
		f.logger.Error("DNS switch failed", "alias", f.alias, "target", ip, "error", err)
		return false
	}
	f.logger.Info("DNS switched", "alias", f.alias, "target", ip)
	return true
}
