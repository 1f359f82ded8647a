package telemetry

import (
	"math"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/ports"
)

// PowerState is the interpreted power draw of a device role.
type PowerState struct {
	Class      domain.PowerClass `json:"state"`
	PowerWatts float64           `json:"power_w"`
	Confidence float64           `json:"confidence"`
}

// Classify maps a wattage onto a power class with a confidence.
func Classify(watts float64) (domain.PowerClass, float64) {
	switch {
	case watts < domain.ThresholdOff:
		return domain.PowerOff, 0.95
	case watts < domain.ThresholdStandby:
		return domain.PowerStandby, 0.85
	case watts < domain.ThresholdIdle:
		return domain.PowerIdle, 0.80
	case watts < domain.ThresholdActive:
		return domain.PowerActive, 0.85
	default:
		// still active, but an unusual draw
		return domain.PowerActive, 0.70
	}
}

// Detect classifies the latest reading for role.
// No device with the role yields confidence 0; a device without data yields 0.5.
func Detect(provider ports.PowerTelemetry, lookup ports.DeviceLookup, role string) PowerState {
	if lookup == nil || !lookup.HasRole(role) {
		return PowerState{Class: domain.PowerUnknown}
	}
	reading, ok := provider.LatestReading(role)
	if !ok {
		return PowerState{Class: domain.PowerUnknown, Confidence: 0.5}
	}
	class, confidence := Classify(reading.PowerWatts)
	return PowerState{
		Class:      class,
		PowerWatts: math.Round(reading.PowerWatts*100) / 100,
		Confidence: confidence,
	}
}
