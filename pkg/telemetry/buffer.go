package telemetry

import (
	"sync"
	"time"

	"github.com/aretw0/balupi/pkg/domain"
)

// Device describes one power-metered device.
type Device struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role" json:"role"`

	Modbus ModbusConfig `yaml:"modbus" json:"modbus"`
}

// Buffer holds the latest reading per device. Safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	devices  []Device // configuration order
	readings map[string]domain.PowerReading
}

// NewBuffer creates a buffer for the given devices.
func NewBuffer(devices ...Device) *Buffer {
	b := &Buffer{readings: make(map[string]domain.PowerReading)}
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		b.devices = append(b.devices, d)
	}
	return b
}

// Devices returns the configured devices in configuration order.
func (b *Buffer) Devices() []Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Device(nil), b.devices...)
}

// Record stores watts as the latest reading of deviceID.
func (b *Buffer) Record(deviceID string, watts float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings[deviceID] = domain.PowerReading{
		DeviceID:   deviceID,
		PowerWatts: watts,
		ObservedAt: at,
	}
}

// Clear forgets the reading of deviceID.
func (b *Buffer) Clear(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.readings, deviceID)
}

// HasRole reports whether any configured device carries role.
func (b *Buffer) HasRole(role string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, d := range b.devices {
		if d.Role == role {
			return true
		}
	}
	return false
}

// LatestReading implements ports.PowerTelemetry. With several devices sharing
// role, the first one in configuration order that has a reading wins.
func (b *Buffer) LatestReading(role string) (domain.PowerReading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, d := range b.devices {
		if d.Role != role {
			continue
		}
		if r, ok := b.readings[d.ID]; ok {
			return r, true
		}
	}
	return domain.PowerReading{}, false
}
