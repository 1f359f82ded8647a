package statemachine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
)

// DefaultKey is the store key of the host record.
const DefaultKey = "nas_state"

// Machine tracks the host lifecycle with durable persistence.
type Machine struct {
	store   ports.StateStore
	key     string
	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state domain.HostState
	since time.Time
}

// Option configures the Machine.
type Option func(*Machine)

// WithKey overrides the store key (default "nas_state").
func WithKey(key string) Option {
	return func(m *Machine) {
		m.key = key
	}
}

// WithLocker serialises transitions across processes sharing the store.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Machine) {
		m.locker = locker
		m.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLogger configures a logger for the Machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// New creates a Machine and restores the persisted record from store.
func New(ctx context.Context, store ports.StateStore, opts ...Option) *Machine {
	m := &Machine{
		store:   store,
		key:     DefaultKey,
		lockTTL: 5 * time.Second,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.state = domain.StateUnknown
	m.since = m.timestamp()
	m.load(ctx)
	return m
}

func (m *Machine) timestamp() time.Time {
	return m.now().UTC()
}

func (m *Machine) load(ctx context.Context) {
	record, err := m.store.Load(ctx, m.key)
	switch {
	case err == nil:
		m.state = record.State
		m.since = record.Since
		m.logger.Info("Loaded host state", "state", record.State, "since", record.Since)
	case errors.Is(err, domain.ErrStateNotFound):
		m.logger.Info("No host state record found, starting as unknown")
	default:
		m.logger.Warn("Failed to load host state, resetting to unknown", "error", err)
	}
}

// Current returns the current state.
func (m *Machine) Current() domain.HostState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since
}

// Record returns a consistent copy of {state, since}.
func (m *Machine) Record() domain.StateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.StateRecord{State: m.state, Since: m.since}
}

// Transition moves the machine to target.
//
// It returns true if target equals the current state (no-op, timestamp untouched) or if
// the edge exists and the new record was persisted. Rejected edges, lock failures and
// persistence failures return false and leave the state unchanged.
func (m *Machine) Transition(ctx context.Context, target domain.HostState) bool {
	event, reject, ok := m.apply(ctx, target)
	m.emit(ctx, event, reject)
	return ok
}

// ForceState commits target without consulting the graph. Used at bootstrap and recovery.
// The in-memory state always changes; the returned error reports a persistence failure.
func (m *Machine) ForceState(ctx context.Context, target domain.HostState) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidState, target)
	}

	m.mu.Lock()
	prev := m.state
	m.state = target
	m.since = m.nextSince()
	record := domain.StateRecord{State: m.state, Since: m.since}
	err := m.store.Save(ctx, m.key, record)
	m.mu.Unlock()

	m.logger.Info("Host state forced", "from", prev, "to", target)
	m.emit(ctx, &domain.TransitionEvent{
		Timestamp: record.Since,
		From:      prev,
		To:        target,
		Forced:    true,
		Source:    SourceFrom(ctx),
	}, nil)

	if err != nil {
		m.logger.Error("Failed to persist forced host state", "error", err)
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// nextSince never moves the timestamp backwards, even if the wall clock does.
func (m *Machine) nextSince() time.Time {
	ts := m.timestamp()
	if ts.Before(m.since) {
		return m.since
	}
	return ts
}

func (m *Machine) apply(ctx context.Context, target domain.HostState) (*domain.TransitionEvent, *domain.RejectionEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, m.key, m.lockTTL)
		if err != nil {
			m.logger.Error("Failed to acquire state lock", "target", target, "error", err)
			return nil, nil, false
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release state lock", "error", err)
			}
		}()
		// Another replica may have moved the host while we waited.
		if record, err := m.store.Load(ctx, m.key); err == nil {
			m.state = record.State
			m.since = record.Since
		}
	}

	if target == m.state {
		return nil, nil, true
	}

	if !domain.CanTransition(m.state, target) {
		m.logger.Warn("Invalid host state transition",
			"from", m.state,
			"to", target,
			"valid", domain.NextStates(m.state),
		)
		return nil, &domain.RejectionEvent{
			Timestamp: m.timestamp(),
			From:      m.state,
			To:        target,
			Source:    SourceFrom(ctx),
		}, false
	}

	record := domain.StateRecord{State: target, Since: m.nextSince()}
	if err := m.store.Save(ctx, m.key, record); err != nil {
		m.logger.Error("Failed to persist host state, transition aborted",
			"from", m.state,
			"to", target,
			"error", err,
		)
		return nil, nil, false
	}

	prev := m.state
	m.state = record.State
	m.since = record.Since
	m.logger.Info("Host state changed", "from", prev, "to", target, "source", SourceFrom(ctx))

	return &domain.TransitionEvent{
		Timestamp: record.Since,
		From:      prev,
		To:        target,
		Source:    SourceFrom(ctx),
	}, nil, true
}

func (m *Machine) emit(ctx context.Context, event *domain.TransitionEvent, reject *domain.RejectionEvent) {
	if event != nil && m.hooks.OnTransition != nil {
		m.hooks.OnTransition(ctx, event)
	}
	if reject != nil && m.hooks.OnReject != nil {
		m.hooks.OnReject(ctx, reject)
	}
}
