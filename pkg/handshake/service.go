package handshake

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/aretw0/balupi/pkg/statemachine"
)

// PollControl is the part of the heartbeat the handshake touches.
type PollControl interface {
	SetNormalPoll()
}

// Addresses are the failover targets.
type Addresses struct {
	Host string
	Self string
}

// OfflineAck answers a going-offline message.
type OfflineAck struct {
	Acknowledged bool `json:"acknowledged"`
	DNSSwitched  bool `json:"dns_switched"`
}

// OnlineAck answers a coming-online message.
type OnlineAck struct {
	Acknowledged     bool `json:"acknowledged"`
	InboxFlushed     bool `json:"inbox_flushed"`
	FilesTransferred int  `json:"files_transferred"`
	DNSSwitched      bool `json:"dns_switched"`
}

// StatusReport is the read-only handshake status.
type StatusReport struct {
	State        domain.HostState `json:"nas_state"`
	Since        time.Time        `json:"since"`
	LastSnapshot *time.Time       `json:"last_snapshot"`
	InboxSizeMB  float64          `json:"inbox_size_mb"`
}

// Service applies handshake messages to the state machine and DNS.
type Service struct {
	machine    *statemachine.Machine
	dns        ports.AliasSwitcher
	snapshots  ports.SnapshotStore
	inbox      ports.InboxTransfer
	poll       PollControl
	addrs      Addresses
	dnsTimeout time.Duration
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPollControl lets coming-online messages disable fast poll.
func WithPollControl(p PollControl) ServiceOption {
	return func(s *Service) {
		s.poll = p
	}
}

// WithDNSTimeout bounds the DNS switch of one message.
func WithDNSTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.dnsTimeout = d
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires the handshake.
func NewService(machine *statemachine.Machine, dns ports.AliasSwitcher, snapshots ports.SnapshotStore, inbox ports.InboxTransfer, addrs Addresses, opts ...ServiceOption) *Service {
	s := &Service{
		machine:    machine,
		dns:        dns,
		snapshots:  snapshots,
		inbox:      inbox,
		addrs:      addrs,
		dnsTimeout: 10 * time.Second,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// detach keeps state tracking alive when the caller disconnects mid-request.
func (s *Service) detach(ctx context.Context) context.Context {
	return statemachine.WithSource(context.WithoutCancel(ctx), "handshake")
}

func (s *Service) switchDNS(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.dnsTimeout)
	defer cancel()
	return s.dns.PointAliasAt(ctx, ip)
}

// GoingOffline stores body as the latest snapshot, then moves the host through
// SHUTTING_DOWN to OFFLINE and fails DNS over to the companion.
// Only a snapshot write failure is returned as an error.
func (s *Service) GoingOffline(ctx context.Context, body []byte) (OfflineAck, error) {
	ctx = s.detach(ctx)

	if err := s.snapshots.Put(body); err != nil {
		return OfflineAck{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.Info("Stored host shutdown snapshot", "bytes", len(body))

	s.machine.Transition(ctx, domain.StateShuttingDown)
	switched := s.switchDNS(ctx, s.addrs.Self)
	s.machine.Transition(ctx, domain.StateOffline)

	return OfflineAck{Acknowledged: true, DNSSwitched: switched}, nil
}

// ComingOnline marks the host ONLINE, drains the inbox and points DNS back at the host.
func (s *Service) ComingOnline(ctx context.Context) OnlineAck {
	ctx = s.detach(ctx)

	s.machine.Transition(ctx, domain.StateOnline)
	n := s.inbox.Flush(ctx)
	switched := s.switchDNS(ctx, s.addrs.Host)
	if s.poll != nil {
		s.poll.SetNormalPoll()
	}

	return OnlineAck{
		Acknowledged:     true,
		InboxFlushed:     n > 0,
		FilesTransferred: n,
		DNSSwitched:      switched,
	}
}

// Status reports the state without side effects.
func (s *Service) Status() StatusReport {
	record := s.machine.Record()
	report := StatusReport{
		State:       record.State,
		Since:       record.Since,
		InboxSizeMB: math.Round(float64(s.inbox.SizeBytes())/(1024*1024)*10) / 10,
	}
	if t, ok := s.snapshots.LastModified(); ok {
		report.LastSnapshot = &t
	}
	return report
}

// Snapshot returns the latest snapshot bytes or ports.ErrNoSnapshot.
func (s *Service) Snapshot() ([]byte, error) {
	return s.snapshots.Get()
}
