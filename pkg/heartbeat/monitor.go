package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/aretw0/balupi/pkg/statemachine"
)

const (
	NormalInterval   = 30 * time.Second
	FastInterval     = 5 * time.Second
	FailureThreshold = 3
	StartupDelay     = 5 * time.Second

	// DefaultActiveThreshold is the draw above which an unreachable host is
	// considered powered with a crashed service.
	DefaultActiveThreshold = 30.0
)

// Action is the outcome of one detection cycle.
type Action string

const (
	ActionNone     Action = "none"
	ActionOnline   Action = "online"
	ActionOffline  Action = "offline"
	ActionStandby  Action = "standby"
	ActionCrashed  Action = "crashed"
	ActionDebounce Action = "debounce"
)

// Detection describes what a cycle observed and did.
type Detection struct {
	Healthy     bool
	Failures    int
	PowerWatts  float64
	HasPower    bool
	Action      Action
	State       domain.HostState
	DNSSwitched bool
}

// Addresses are the failover targets.
type Addresses struct {
	Host string // where the alias points while the host serves
	Self string // where it points during failover
}

// Monitor is the heartbeat loop.
type Monitor struct {
	machine *statemachine.Machine
	prober  ports.HealthProber
	power   ports.PowerTelemetry
	dns     ports.AliasSwitcher
	addrs   Addresses
	role    string
	active  float64
	normal  time.Duration
	fast    time.Duration
	delay   time.Duration
	logger  *slog.Logger
	onCycle func(Detection)

	mu       sync.Mutex
	failures int
	fastPoll bool
	cancel   context.CancelFunc
	done     chan struct{}
	rearm    chan struct{}
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithPowerTelemetry enables the power tie-break.
func WithPowerTelemetry(p ports.PowerTelemetry) Option {
	return func(m *Monitor) {
		m.power = p
	}
}

// WithHostRole selects which telemetry device stands for the host.
func WithHostRole(role string) Option {
	return func(m *Monitor) {
		m.role = role
	}
}

// WithActiveThreshold sets the crashed-service threshold in watts.
func WithActiveThreshold(watts float64) Option {
	return func(m *Monitor) {
		m.active = watts
	}
}

// WithIntervals overrides the normal and fast poll intervals.
func WithIntervals(normal, fast time.Duration) Option {
	return func(m *Monitor) {
		m.normal = normal
		m.fast = fast
	}
}

// WithStartupDelay overrides the wait before the first probe.
func WithStartupDelay(d time.Duration) Option {
	return func(m *Monitor) {
		m.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithCycleObserver is called with the result of every cycle.
func WithCycleObserver(fn func(Detection)) Option {
	return func(m *Monitor) {
		m.onCycle = fn
	}
}

// New creates a monitor. It does not start polling until Start or Run.
func New(machine *statemachine.Machine, prober ports.HealthProber, dns ports.AliasSwitcher, addrs Addresses, opts ...Option) *Monitor {
	m := &Monitor{
		machine: machine,
		prober:  prober,
		dns:     dns,
		addrs:   addrs,
		role:    domain.RoleHost,
		active:  DefaultActiveThreshold,
		normal:  NormalInterval,
		fast:    FastInterval,
		delay:   StartupDelay,
		logger:  logging.NewNop(),
		rearm:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFastPoll shortens the interval (after a wake signal) and resets the failure count.
func (m *Monitor) SetFastPoll() {
	m.mu.Lock()
	m.fastPoll = true
	m.failures = 0
	m.mu.Unlock()

	// Cut the current sleep short so the shorter interval applies now.
	select {
	case m.rearm <- struct{}{}:
	default:
	}
	m.logger.Info("Heartbeat: fast poll enabled")
}

// SetNormalPoll restores the normal interval.
func (m *Monitor) SetNormalPoll() {
	m.mu.Lock()
	m.fastPoll = false
	m.mu.Unlock()
}

// FastPoll reports whether fast poll is armed.
func (m *Monitor) FastPoll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fastPoll
}

// Failures returns the current run of consecutive probe failures.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

func (m *Monitor) interval() time.Duration {
	if m.FastPoll() {
		return m.fast
	}
	return m.normal
}

// Start launches the loop in the background. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = m.Run(ctx)
	}(m.done)
	m.logger.Info("Heartbeat service started")
}

// Stop cancels the loop and waits for it to exit. It is safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("Heartbeat service stopped")
}

// Run blocks until ctx is cancelled, running one cycle per interval.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.sleep(ctx, m.delay) {
		return nil
	}
	for {
		m.Cycle(ctx)
		if !m.sleep(ctx, m.interval()) {
			return nil
		}
	}
}

// sleep waits for d, returning false if ctx ended first. Arming fast poll ends it early.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-m.rearm:
		return ctx.Err() == nil
	}
}

// Cycle runs one probe and detection. Panics are recovered and logged.
func (m *Monitor) Cycle(ctx context.Context) (d Detection) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Heartbeat error", "error", fmt.Sprint(r))
			d = Detection{Action: ActionNone, State: m.machine.Current()}
		}
	}()
	ok := m.prober.Probe(ctx)
	return m.HandleDetection(ctx, ok)
}

func (m *Monitor) hostPower() (float64, bool) {
	if m.power == nil {
		return 0, false
	}
	reading, ok := m.power.LatestReading(m.role)
	if !ok {
		return 0, false
	}
	return reading.PowerWatts, true
}

// HandleDetection applies the detection policy to one probe outcome.
func (m *Monitor) HandleDetection(ctx context.Context, healthy bool) (d Detection) {
	ctx = statemachine.WithSource(ctx, "heartbeat")
	watts, hasPower := m.hostPower()
	current := m.machine.Current()

	d = Detection{
		Healthy:    healthy,
		PowerWatts: watts,
		HasPower:   hasPower,
		Action:     ActionNone,
	}

	m.mu.Lock()
	if healthy {
		m.failures = 0
	} else {
		m.failures++
	}
	d.Failures = m.failures
	m.mu.Unlock()

	defer func() {
		d.State = m.machine.Current()
		if m.onCycle != nil {
			m.onCycle(d)
		}
	}()

	if healthy {
		if current != domain.StateOnline {
			m.machine.Transition(ctx, domain.StateOnline)
			d.DNSSwitched = m.dns.PointAliasAt(ctx, m.addrs.Host)
			m.SetNormalPoll()
			d.Action = ActionOnline
		}
		return d
	}

	if d.Failures < FailureThreshold {
		d.Action = ActionDebounce
		return d
	}

	switch {
	case hasPower && watts < domain.ThresholdOff:
		d.Action = ActionOffline
		if current != domain.StateOffline {
			m.failover(ctx, &d)
			m.SetNormalPoll()
		}
	case hasPower && watts < domain.ThresholdStandby:
		// Standby keeps fast poll: the host may be about to finish booting.
		d.Action = ActionStandby
		if current != domain.StateOffline {
			m.failover(ctx, &d)
		}
	case hasPower && watts > m.active:
		d.Action = ActionCrashed
		m.logger.Warn("Host HTTP down but drawing power, service may have crashed",
			"power_w", fmt.Sprintf("%.1f", watts))
	case hasPower:
		// between standby and the active threshold: ambiguous, keep waiting
	default:
		if current != domain.StateOffline && current != domain.StateShuttingDown {
			d.Action = ActionOffline
			m.failover(ctx, &d)
			m.SetNormalPoll()
		}
	}
	return d
}

func (m *Monitor) failover(ctx context.Context, d *Detection) {
	m.machine.Transition(ctx, domain.StateOffline)
	d.DNSSwitched = m.dns.PointAliasAt(ctx, m.addrs.Self)
}
