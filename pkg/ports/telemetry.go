package ports

import "github.com/aretw0/balupi/pkg/domain"

// PowerTelemetry supplies the most recent successfully polled power reading.
// Implementations must not perform network I/O inside LatestReading.
type PowerTelemetry interface {
	// LatestReading returns the reading of the device tagged with role.
	// ok is false when no device has the role or it has not reported yet.
	LatestReading(role string) (reading domain.PowerReading, ok bool)
}

// DeviceLookup reports whether a device with the given role is configured at all.
type DeviceLookup interface {
	HasRole(role string) bool
}
