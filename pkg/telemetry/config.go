package telemetry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DevicesFile represents the structure of devices.yaml.
type DevicesFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadDevices reads the device list. A missing file means "no telemetry configured".
func LoadDevices(path string) ([]Device, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read devices file: %w", err)
	}

	var cfg DevicesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse devices file: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]Device, 0, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if d.ID == "" {
			return nil, fmt.Errorf("devices[%d]: id required", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
		if err := d.Modbus.normalize(); err != nil {
			return nil, fmt.Errorf("devices[%d] (%s): %w", i, d.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}
