package domain

import "time"

// Device roles understood by the companion.
const (
	RoleHost = "nas"
)

// PowerReading is the most recent wattage reported for a device.
type PowerReading struct {
	DeviceID   string    `json:"device_id"`
	PowerWatts float64   `json:"power_watts"`
	ObservedAt time.Time `json:"observed_at"`
}

// PowerClass is a coarse interpretation of a wattage.
type PowerClass string

const (
	PowerUnknown PowerClass = "unknown"
	PowerOff     PowerClass = "off"
	PowerStandby PowerClass = "standby"
	PowerIdle    PowerClass = "idle"
	PowerActive  PowerClass = "active"
)

// Power thresholds in watts.
const (
	ThresholdOff     = 2.0
	ThresholdStandby = 15.0
	ThresholdIdle    = 60.0
	ThresholdActive  = 200.0
)
