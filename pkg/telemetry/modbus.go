package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig locates the power register of a device.
type ModbusConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	UnitID   uint8         `yaml:"unit_id" json:"unit_id"`
	Register uint16        `yaml:"register" json:"register"`
	Function string        `yaml:"function" json:"function"` // input | holding
	Format   string        `yaml:"format" json:"format"`     // uint16 | uint32 | int32 | float32
	WordSwap bool          `yaml:"word_swap" json:"word_swap"`
	Scale    float64       `yaml:"scale" json:"scale"` // raw * scale = watts
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

func (c *ModbusConfig) normalize() error {
	if c.Endpoint == "" {
		return errors.New("modbus: endpoint required")
	}
	switch c.Function {
	case "":
		c.Function = "input"
	case "input", "holding":
	default:
		return fmt.Errorf("modbus: unsupported function %q", c.Function)
	}
	switch c.Format {
	case "":
		c.Format = "uint16"
	case "uint16", "uint32", "int32", "float32":
	default:
		return fmt.Errorf("modbus: unsupported format %q", c.Format)
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	return nil
}

func (c ModbusConfig) quantity() uint16 {
	if c.Format == "uint16" {
		return 1
	}
	return 2
}

// decodeWatts converts the raw register bytes into watts.
func (c ModbusConfig) decodeWatts(raw []byte) (float64, error) {
	want := int(c.quantity()) * 2
	if len(raw) < want {
		return 0, fmt.Errorf("modbus: short response: got %d bytes, want %d", len(raw), want)
	}

	if c.Format == "uint16" {
		return float64(binary.BigEndian.Uint16(raw[:2])) * c.Scale, nil
	}

	word := make([]byte, 4)
	copy(word, raw[:4])
	if c.WordSwap {
		word[0], word[1], word[2], word[3] = raw[2], raw[3], raw[0], raw[1]
	}
	u := binary.BigEndian.Uint32(word)

	switch c.Format {
	case "uint32":
		return float64(u) * c.Scale, nil
	case "int32":
		return float64(int32(u)) * c.Scale, nil
	default:
		f := math.Float32frombits(u)
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return 0, errors.New("modbus: register holds a non-finite float")
		}
		return float64(f) * c.Scale, nil
	}
}

// ModbusMeter reads one device over Modbus TCP.
// It serialises requests and reconnects lazily after a failure.
type ModbusMeter struct {
	cfg ModbusConfig

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewModbusMeter creates a meter; no connection is made until the first read.
func NewModbusMeter(cfg ModbusConfig) (*ModbusMeter, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &ModbusMeter{cfg: cfg}, nil
}

func (m *ModbusMeter) connect() error {
	if m.client != nil {
		return nil
	}
	h := modbus.NewTCPClientHandler(m.cfg.Endpoint)
	h.Timeout = m.cfg.Timeout
	h.SlaveId = m.cfg.UnitID
	if err := h.Connect(); err != nil {
		return fmt.Errorf("modbus: connect %s: %w", m.cfg.Endpoint, err)
	}
	m.handler = h
	m.client = modbus.NewClient(h)
	return nil
}

func (m *ModbusMeter) reset() {
	if m.handler != nil {
		_ = m.handler.Close()
	}
	m.handler = nil
	m.client = nil
}

// ReadWatts performs one register read.
func (m *ModbusMeter) ReadWatts() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.connect(); err != nil {
		return 0, err
	}

	var (
		raw []byte
		err error
	)
	if m.cfg.Function == "holding" {
		raw, err = m.client.ReadHoldingRegisters(m.cfg.Register, m.cfg.quantity())
	} else {
		raw, err = m.client.ReadInputRegisters(m.cfg.Register, m.cfg.quantity())
	}
	if err != nil {
		m.reset()
		return 0, fmt.Errorf("modbus: read register %d: %w", m.cfg.Register, err)
	}
	return m.cfg.decodeWatts(raw)
}

// Close releases the TCP connection.
func (m *ModbusMeter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}
