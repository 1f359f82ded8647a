package telemetry_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/domain"
	"github.com/aretw0/balupi/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nasPlug() telemetry.Device {
	return telemetry.Device{ID: "plug-1", Name: "NAS plug", Role: domain.RoleHost}
}

func TestBuffer_LatestReadingByRole(t *testing.T) {
	b := telemetry.NewBuffer(nasPlug(), telemetry.Device{ID: "plug-2", Role: "tv"})

	_, ok := b.LatestReading(domain.RoleHost)
	assert.False(t, ok, "no reading yet")
	assert.True(t, b.HasRole(domain.RoleHost))
	assert.False(t, b.HasRole("fridge"))

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Record("plug-1", 41.5, at)
	b.Record("plug-1", 42.0, at.Add(time.Minute))

	r, ok := b.LatestReading(domain.RoleHost)
	require.True(t, ok)
	assert.Equal(t, 42.0, r.PowerWatts)
	assert.Equal(t, at.Add(time.Minute), r.ObservedAt)

	b.Clear("plug-1")
	_, ok = b.LatestReading(domain.RoleHost)
	assert.False(t, ok)
}

func TestBuffer_SharedRoleUsesFirstDeviceWithReading(t *testing.T) {
	b := telemetry.NewBuffer(
		telemetry.Device{ID: "plug-b", Role: domain.RoleHost},
		telemetry.Device{ID: "plug-a", Role: domain.RoleHost},
		telemetry.Device{ID: "plug-c", Role: domain.RoleHost},
	)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// plug-b has no reading yet, so the next device in order answers.
	b.Record("plug-c", 9.0, at)
	b.Record("plug-a", 35.0, at)
	for i := 0; i < 20; i++ {
		r, ok := b.LatestReading(domain.RoleHost)
		require.True(t, ok)
		assert.Equal(t, "plug-a", r.DeviceID)
	}

	b.Record("plug-b", 1.0, at)
	r, ok := b.LatestReading(domain.RoleHost)
	require.True(t, ok)
	assert.Equal(t, "plug-b", r.DeviceID)

	ids := make([]string, 0, 3)
	for _, d := range b.Devices() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"plug-b", "plug-a", "plug-c"}, ids)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		watts      float64
		class      domain.PowerClass
		confidence float64
	}{
		{0.4, domain.PowerOff, 0.95},
		{1.99, domain.PowerOff, 0.95},
		{2, domain.PowerStandby, 0.85},
		{14.9, domain.PowerStandby, 0.85},
		{15, domain.PowerIdle, 0.80},
		{80, domain.PowerActive, 0.85},
		{250, domain.PowerActive, 0.70},
	}
	for _, tc := range cases {
		class, confidence := telemetry.Classify(tc.watts)
		assert.Equal(t, tc.class, class, "%.2fW", tc.watts)
		assert.Equal(t, tc.confidence, confidence, "%.2fW", tc.watts)
	}
}

func TestDetect(t *testing.T) {
	empty := telemetry.NewBuffer()
	assert.Equal(t, telemetry.PowerState{Class: domain.PowerUnknown}, telemetry.Detect(empty, empty, domain.RoleHost))

	b := telemetry.NewBuffer(nasPlug())
	assert.Equal(t, telemetry.PowerState{Class: domain.PowerUnknown, Confidence: 0.5}, telemetry.Detect(b, b, domain.RoleHost))

	b.Record("plug-1", 1.234, time.Now())
	got := telemetry.Detect(b, b, domain.RoleHost)
	assert.Equal(t, domain.PowerOff, got.Class)
	assert.Equal(t, 1.23, got.PowerWatts)
}

func TestLoadDevices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - id: plug-nas
    name: NAS plug
    role: nas
    modbus:
      endpoint: 192.168.178.60:502
      unit_id: 3
      register: 12
      format: float32
      timeout: 2s
`), 0644))

	devices, err := telemetry.LoadDevices(path)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	d := devices[0]
	assert.Equal(t, "nas", d.Role)
	assert.Equal(t, uint8(3), d.Modbus.UnitID)
	assert.Equal(t, "input", d.Modbus.Function, "function defaults to input registers")
	assert.Equal(t, 1.0, d.Modbus.Scale)
	assert.Equal(t, 2*time.Second, d.Modbus.Timeout)
}

func TestLoadDevices_MissingFile(t *testing.T) {
	devices, err := telemetry.LoadDevices(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
	assert.Empty(t, devices)
}

func TestLoadDevices_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":   "devices:\n  - role: nas\n    modbus: {endpoint: 'x:502'}\n",
		"duplicate id": "devices:\n  - id: a\n    modbus: {endpoint: 'x:502'}\n  - id: a\n    modbus: {endpoint: 'y:502'}\n",
		"bad format":   "devices:\n  - id: a\n    modbus: {endpoint: 'x:502', format: bcd}\n",
		"no endpoint":  "devices:\n  - id: a\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "devices.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := telemetry.LoadDevices(path)
			assert.Error(t, err)
		})
	}
}

type fakeMeter struct {
	watts []float64
	errs  []error
	calls int
}

func (f *fakeMeter) ReadWatts() (float64, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return 0, f.errs[i]
	}
	if i < len(f.watts) {
		return f.watts[i], nil
	}
	return 0, errors.New("exhausted")
}

func TestPoller_ClearsAfterConsecutiveFailures(t *testing.T) {
	b := telemetry.NewBuffer(nasPlug())
	boom := errors.New("timeout")
	meter := &fakeMeter{
		watts: []float64{35, 0, 0, 0, 36},
		errs:  []error{nil, boom, boom, boom, nil},
	}
	p, err := telemetry.NewPoller(b, map[string]telemetry.Meter{"plug-1": meter}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, p.PollOnce())
	_, ok := b.LatestReading(domain.RoleHost)
	assert.True(t, ok)

	p.PollOnce()
	p.PollOnce()
	_, ok = b.LatestReading(domain.RoleHost)
	assert.True(t, ok, "two failures keep the last value")

	p.PollOnce()
	_, ok = b.LatestReading(domain.RoleHost)
	assert.False(t, ok, "third failure drops the stale value")

	p.PollOnce()
	r, ok := b.LatestReading(domain.RoleHost)
	require.True(t, ok)
	assert.Equal(t, 36.0, r.PowerWatts)
}

func TestNewPoller_Validation(t *testing.T) {
	_, err := telemetry.NewPoller(nil, nil, time.Second)
	assert.Error(t, err)
	_, err = telemetry.NewPoller(telemetry.NewBuffer(), nil, 0)
	assert.Error(t, err)
}
