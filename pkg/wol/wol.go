// Package wol sends Wake-on-LAN magic packets.
package wol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/statemachine"
)

// DefaultAddr is the limited broadcast address on the discard port.
const DefaultAddr = "255.255.255.255:9"

// ErrNoMAC is returned when no MAC address is configured.
var ErrNoMAC = errors.New("host MAC address not configured")

// ParseMAC accepts 48-bit addresses in colon, dash or dot notation.
func ParseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("invalid MAC address %q: want 6 bytes, got %d", s, len(mac))
	}
	return mac, nil
}

// MagicPacket is 6 bytes of 0xFF followed by the MAC repeated 16 times.
func MagicPacket(mac net.HardwareAddr) []byte {
	var buf bytes.Buffer
	buf.Grow(6 + 16*len(mac))
	buf.Write(bytes.Repeat([]byte{0xff}, 6))
	for i := 0; i < 16; i++ {
		buf.Write(mac)
	}
	return buf.Bytes()
}

// Send broadcasts the magic packet for mac to addr (DefaultAddr when empty).
func Send(ctx context.Context, mac, addr string) error {
	hw, err := ParseMAC(mac)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = DefaultAddr
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("wol: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(MagicPacket(hw)); err != nil {
		return fmt.Errorf("wol: send: %w", err)
	}
	return nil
}

// PollControl arms the heartbeat fast poll.
type PollControl interface {
	SetFastPoll()
}

// Waker wakes the host and tells the rest of the companion to expect it.
type Waker struct {
	mac     string
	addr    string
	machine *statemachine.Machine
	poll    PollControl
	logger  *slog.Logger
}

// Option configures a Waker.
type Option func(*Waker)

// WithAddr overrides the broadcast address.
func WithAddr(addr string) Option {
	return func(w *Waker) {
		w.addr = addr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Waker) {
		w.logger = logger
	}
}

// NewWaker creates a Waker for the host at mac. machine and poll may be nil.
func NewWaker(mac string, machine *statemachine.Machine, poll PollControl, opts ...Option) *Waker {
	w := &Waker{
		mac:     mac,
		addr:    DefaultAddr,
		machine: machine,
		poll:    poll,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wake sends the packet, moves an OFFLINE host to BOOTING and arms fast poll.
func (w *Waker) Wake(ctx context.Context) error {
	if w.mac == "" {
		return ErrNoMAC
	}
	if err := Send(ctx, w.mac, w.addr); err != nil {
		return err
	}
	w.logger.Info("Wake-on-LAN packet sent", "mac", w.mac)

	if w.machine != nil && w.machine.Current() == domain.StateOffline {
		w.machine.Transition(statemachine.WithSource(ctx, "wol"), domain.StateBooting)
	}
	if w.poll != nil {
		w.poll.SetFastPoll()
	}
	return nil
}
