package balupi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/balupi/internal/config"
	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/adapters/file"
	httpAdapter "github.com/aretw0/balupi/pkg/adapters/http"
	"github.com/aretw0/balupi/pkg/adapters/memory"
	"github.com/aretw0/balupi/pkg/adapters/process"
	redisAdapter "github.com/aretw0/balupi/pkg/adapters/redis"
	"github.com/aretw0/balupi/pkg/dns"
	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/aretw0/balupi/pkg/heartbeat"
	"github.com/aretw0/balupi/pkg/observability"
	"github.com/aretw0/balupi/pkg/ports"
	"github.com/aretw0/balupi/pkg/statemachine"
	"github.com/aretw0/balupi/pkg/telemetry"
	"github.com/aretw0/balupi/pkg/wol"
	"golang.org/x/sync/errgroup"
)

// Version is the companion release.
var Version = "0.4.0"

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// Companion is the assembled node.
type Companion struct {
	cfg    *config.Config
	logger *slog.Logger

	Metrics   *observability.Metrics
	Machine   *statemachine.Machine
	Heartbeat *heartbeat.Monitor
	Handshake *handshake.Service
	Telemetry *telemetry.Buffer
	DNS       *dns.Failover

	poller  *telemetry.Poller
	handler http.Handler
	closers []func() error

	store      ports.StateStore
	dnsBackend dns.Backend
}

// Option configures New.
type Option func(*Companion)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Companion) {
		c.logger = logger
	}
}

// WithStateStore overrides the store selected by store.backend.
func WithStateStore(store ports.StateStore) Option {
	return func(c *Companion) {
		c.store = store
	}
}

// WithDNSBackend overrides the backend selected by dns.backend.
func WithDNSBackend(b dns.Backend) Option {
	return func(c *Companion) {
		c.dnsBackend = b
	}
}

// New wires every component from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Companion, error) {
	c := &Companion{
		cfg:     cfg,
		logger:  logging.NewNop(),
		Metrics: observability.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	machineOpts := []statemachine.Option{
		statemachine.WithLifecycleHooks(c.Metrics.Hooks()),
		statemachine.WithLogger(c.logger),
	}
	if c.store == nil {
		store, locker, err := c.openStore()
		if err != nil {
			return nil, err
		}
		c.store = store
		if locker != nil {
			machineOpts = append(machineOpts, statemachine.WithLocker(locker, 5*time.Second))
		}
	}
	c.Machine = statemachine.New(ctx, c.store, machineOpts...)
	c.Metrics.SetState(c.Machine.Current())

	if err := c.openTelemetry(); err != nil {
		c.Close()
		return nil, err
	}

	if c.dnsBackend == nil {
		c.dnsBackend = c.openDNSBackend()
	}
	c.DNS = dns.NewFailover(c.dnsBackend, cfg.DNS.Alias,
		dns.WithKnownAddresses(cfg.Host.IP, cfg.Self.IP),
		dns.WithDryRun(cfg.DevMode),
		dns.WithTimeout(cfg.DNS.Timeout),
		dns.WithLogger(c.logger),
		dns.WithSwitchObserver(c.Metrics.ObserveDNS),
	)

	addrs := heartbeat.Addresses{Host: cfg.Host.IP, Self: cfg.Self.IP}
	prober := heartbeat.NewHTTPProber(cfg.Host.URL, cfg.DevMode)
	c.Heartbeat = heartbeat.New(c.Machine, prober, c.DNS, addrs,
		heartbeat.WithPowerTelemetry(c.Telemetry),
		heartbeat.WithActiveThreshold(cfg.Power.ActiveThresholdWatts),
		heartbeat.WithLogger(c.logger),
		heartbeat.WithCycleObserver(func(d heartbeat.Detection) {
			c.Metrics.ObserveProbe(d.Healthy, d.Failures)
			if d.HasPower {
				c.Metrics.HostPower.Set(d.PowerWatts)
			}
		}),
	)

	runner, err := c.transferRunner()
	if err != nil {
		c.Close()
		return nil, err
	}
	inbox := handshake.NewInbox(cfg.InboxDir(), runner, cfg.Host.SSHUser, cfg.Host.IP, cfg.Host.InboxPath,
		handshake.WithDevMode(cfg.DevMode),
		handshake.WithInboxLogger(c.logger),
	)
	c.Handshake = handshake.NewService(c.Machine, c.DNS, file.NewSnapshotStore(cfg.SnapshotPath()), inbox,
		handshake.Addresses(addrs),
		handshake.WithPollControl(c.Heartbeat),
		handshake.WithDNSTimeout(cfg.DNS.Timeout),
		handshake.WithServiceLogger(c.logger),
	)

	serverOpts := []httpAdapter.Option{
		httpAdapter.WithHostInspector(prober),
		httpAdapter.WithTelemetry(c.Telemetry),
		httpAdapter.WithMetrics(c.Metrics),
		httpAdapter.WithLogger(c.logger),
		httpAdapter.WithVersion(Version),
	}
	if cfg.Host.MAC != "" {
		serverOpts = append(serverOpts, httpAdapter.WithWaker(
			wol.NewWaker(cfg.Host.MAC, c.Machine, c.Heartbeat, wol.WithLogger(c.logger)),
		))
	}
	if cfg.Handshake.Secret == "" {
		c.logger.Warn("Handshake secret not configured, handshake endpoints will answer 500")
	}
	c.handler = httpAdapter.NewHandler(httpAdapter.NewServer(c.Handshake, handshake.NewVerifier(cfg.Handshake.Secret), serverOpts...))

	return c, nil
}

func (c *Companion) openStore() (ports.StateStore, ports.DistributedLocker, error) {
	switch c.cfg.Store.Backend {
	case "memory":
		return memory.NewStore(), nil, nil
	case "redis":
		r := c.cfg.Store.Redis
		store := redisAdapter.New(r.Addr, r.Password, r.DB)
		c.closers = append(c.closers, store.Close)
		return store, redisAdapter.NewLocker(store.Client(), "balupi:"), nil
	default:
		return file.New(c.cfg.StateDir()), nil, nil
	}
}

func (c *Companion) openTelemetry() error {
	devices, err := telemetry.LoadDevices(c.cfg.Telemetry.DevicesFile)
	if err != nil {
		return err
	}
	c.Telemetry = telemetry.NewBuffer(devices...)

	meters := make(map[string]telemetry.Meter)
	for _, d := range devices {
		m, err := telemetry.NewModbusMeter(d.Modbus)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
		meters[d.ID] = m
		c.closers = append(c.closers, m.Close)
	}
	if len(meters) == 0 {
		return nil
	}
	c.poller, err = telemetry.NewPoller(c.Telemetry, meters, c.cfg.Telemetry.Interval,
		telemetry.WithPollerLogger(c.logger))
	return err
}

func (c *Companion) openDNSBackend() dns.Backend {
	switch c.cfg.DNS.Backend {
	case "pihole":
		return dns.NewPiholeClient(c.cfg.DNS.Pihole.URL, c.cfg.DNS.Pihole.Password)
	case "rfc2136":
		r := c.cfg.DNS.RFC2136
		return &dns.UpdateClient{
			Server:     r.Server,
			Zone:       r.Zone,
			TTL:        c.cfg.DNS.TTL,
			TsigName:   r.TSIGName,
			TsigSecret: r.TSIGSecret,
			Timeout:    c.cfg.DNS.Timeout,
		}
	default:
		c.logger.Info("DNS control plane disabled, alias switches are logged only")
		return nil
	}
}

func (c *Companion) transferRunner() (*process.Runner, error) {
	procs := map[string]process.RegisteredProcess{}
	if path := c.cfg.Transfer.ProcessesFile; path != "" {
		loaded, err := process.LoadRegistry(path)
		if err != nil {
			return nil, err
		}
		procs = loaded
	}

	rsync, ok := procs[handshake.TransferTool]
	if !ok {
		rsync = process.RegisteredProcess{Command: "rsync"}
	}
	if rsync.Timeout == 0 {
		rsync.Timeout = handshake.TransferTimeout
	}
	procs[handshake.TransferTool] = rsync
	return process.NewRunner(process.WithRegistry(procs)), nil
}

// Handler is the HTTP API.
func (c *Companion) Handler() http.Handler {
	return c.handler
}

// Run serves HTTP and runs the heartbeat and telemetry loops until ctx ends
// or one of them fails.
func (c *Companion) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              c.cfg.Listen,
		Handler:           c.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		c.logger.Info("Starting balupi", "addr", srv.Addr, "version", Version, "dev_mode", c.cfg.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			return srv.Close()
		}
		return nil
	})
	g.Go(func() error {
		return c.Heartbeat.Run(ctx)
	})
	if c.poller != nil {
		g.Go(func() error {
			return c.poller.Run(ctx)
		})
	}

	err := g.Wait()
	c.logger.Info("balupi stopped")
	return err
}

// Close releases store connections and meter sockets.
func (c *Companion) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
