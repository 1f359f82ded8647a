package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/balupi/internal/logging"
)

// MaxFailCount is the number of consecutive failed reads after which a device's
// reading is dropped, so the heartbeat stops trusting a stale value.
const MaxFailCount = 3

// Meter reads the instantaneous power of one device.
type Meter interface {
	ReadWatts() (float64, error)
}

// Poller refreshes a Buffer from a set of meters.
// One cycle at a time, no overlap, no retries within a cycle.
type Poller struct {
	buffer   *Buffer
	meters   map[string]Meter
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	failures map[string]int
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets the logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithPollerClock replaces time.Now.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		p.now = now
	}
}

// NewPoller creates a poller; meters are keyed by device ID.
func NewPoller(buffer *Buffer, meters map[string]Meter, interval time.Duration, opts ...PollerOption) (*Poller, error) {
	if buffer == nil {
		return nil, errors.New("telemetry: buffer required")
	}
	if interval <= 0 {
		return nil, errors.New("telemetry: interval must be > 0")
	}
	p := &Poller{
		buffer:   buffer,
		meters:   meters,
		interval: interval,
		logger:   logging.NewNop(),
		now:      time.Now,
		failures: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PollOnce reads every meter once and updates the buffer.
// It returns the number of successful reads.
func (p *Poller) PollOnce() int {
	ok := 0
	for id, meter := range p.meters {
		watts, err := meter.ReadWatts()
		if err != nil {
			p.failures[id]++
			p.logger.Debug("Power read failed", "device", id, "failures", p.failures[id], "error", err)
			if p.failures[id] == MaxFailCount {
				p.buffer.Clear(id)
				p.logger.Warn("Device marked offline after repeated failures", "device", id, "failures", MaxFailCount)
			}
			continue
		}
		p.failures[id] = 0
		p.buffer.Record(id, watts, p.now().UTC())
		ok++
	}
	return ok
}

// Run polls immediately and then on every interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.PollOnce()
		}
	}
}
