// Package config loads the companion configuration from defaults, an optional
// YAML file and BALUPI_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BALUPI_HOST_URL.
const EnvPrefix = "BALUPI"

type Config struct {
	Listen  string `mapstructure:"listen" validate:"required"`
	DevMode bool   `mapstructure:"dev_mode"`
	DataDir string `mapstructure:"data_dir" validate:"required"`

	Host      HostConfig      `mapstructure:"host"`
	Self      SelfConfig      `mapstructure:"self"`
	Handshake HandshakeConfig `mapstructure:"handshake"`
	DNS       DNSConfig       `mapstructure:"dns"`
	Power     PowerConfig     `mapstructure:"power"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
}

type HostConfig struct {
	URL       string `mapstructure:"url" validate:"required,url"`
	IP        string `mapstructure:"ip" validate:"omitempty,ip"`
	MAC       string `mapstructure:"mac" validate:"omitempty,mac"`
	SSHUser   string `mapstructure:"ssh_user"`
	InboxPath string `mapstructure:"inbox_path"`
}

type SelfConfig struct {
	IP string `mapstructure:"ip" validate:"omitempty,ip"`
}

type HandshakeConfig struct {
	// Secret is shared with the host. Empty disables the handshake endpoints (HTTP 500).
	Secret string `mapstructure:"secret" validate:"omitempty,min=32"`
}

type DNSConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=pihole rfc2136 none"`
	Alias   string        `mapstructure:"alias" validate:"required,hostname"`
	TTL     uint32        `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Pihole  PiholeConfig  `mapstructure:"pihole"`
	RFC2136 RFC2136Config `mapstructure:"rfc2136"`
}

type PiholeConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Password string `mapstructure:"password"`
}

type RFC2136Config struct {
	Server     string `mapstructure:"server" validate:"omitempty,hostname_port"`
	Zone       string `mapstructure:"zone"`
	TSIGName   string `mapstructure:"tsig_name"`
	TSIGSecret string `mapstructure:"tsig_secret" validate:"omitempty,base64"`
}

type PowerConfig struct {
	ActiveThresholdWatts float64 `mapstructure:"active_threshold_watts" validate:"gt=0"`
}

type TelemetryConfig struct {
	DevicesFile string        `mapstructure:"devices_file"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type TransferConfig struct {
	// ProcessesFile optionally overrides the rsync invocation (see process.LoadRegistry).
	ProcessesFile string `mapstructure:"processes_file"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend" validate:"oneof=file redis memory"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"listen":                       ":8000",
		"dev_mode":                     false,
		"data_dir":                     "./data",
		"host.url":                     "http://192.168.178.53",
		"host.ip":                      "",
		"host.mac":                     "",
		"host.ssh_user":                "balu",
		"host.inbox_path":              "/srv/balu/inbox",
		"self.ip":                      "",
		"handshake.secret":             "",
		"dns.backend":                  "pihole",
		"dns.alias":                    "baluhost.local",
		"dns.ttl":                      60,
		"dns.timeout":                  "10s",
		"dns.pihole.url":               "http://127.0.0.1",
		"dns.pihole.password":          "",
		"dns.rfc2136.server":           "",
		"dns.rfc2136.zone":             "",
		"dns.rfc2136.tsig_name":        "",
		"dns.rfc2136.tsig_secret":      "",
		"power.active_threshold_watts": 30.0,
		"telemetry.devices_file":       "",
		"telemetry.interval":           "30s",
		"transfer.processes_file":      "",
		"store.backend":                "file",
		"store.redis.addr":             "127.0.0.1:6379",
		"store.redis.password":         "",
		"store.redis.db":               0,
		"log.level":                    "info",
		"log.file":                     "",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads the configuration. path may be empty to use defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills derived values. The host IP defaults to the host of host.url.
func (c *Config) Normalize() error {
	c.Host.URL = strings.TrimRight(c.Host.URL, "/")
	if c.Host.IP == "" {
		ip, err := hostOf(c.Host.URL)
		if err != nil {
			return err
		}
		c.Host.IP = ip
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.DNS.Backend = strings.ToLower(c.DNS.Backend)
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	if c.DNS.RFC2136.Zone == "" && c.DNS.Backend == "rfc2136" {
		// baluhost.local -> local
		if i := strings.IndexByte(c.DNS.Alias, '.'); i >= 0 {
			c.DNS.RFC2136.Zone = c.DNS.Alias[i+1:]
		}
	}
	return nil
}

func hostOf(raw string) (string, error) {
	if !strings.Contains(raw, "//") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("host.url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("host.url %q has no host", raw)
	}
	return u.Hostname(), nil
}

// Validate checks field constraints and the requirements of the selected backends.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	var problems []string
	if !c.DevMode {
		switch c.DNS.Backend {
		case "pihole":
			if c.DNS.Pihole.URL == "" {
				problems = append(problems, "dns.pihole.url is required for the pihole backend")
			}
		case "rfc2136":
			if c.DNS.RFC2136.Server == "" || c.DNS.RFC2136.Zone == "" {
				problems = append(problems, "dns.rfc2136.server and dns.rfc2136.zone are required for the rfc2136 backend")
			}
			if (c.DNS.RFC2136.TSIGName == "") != (c.DNS.RFC2136.TSIGSecret == "") {
				problems = append(problems, "dns.rfc2136.tsig_name and tsig_secret must be set together")
			}
		}
		if c.DNS.Backend != "none" && c.Self.IP == "" {
			problems = append(problems, "self.ip is required to fail DNS over to this node")
		}
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		problems = append(problems, "store.redis.addr is required for the redis store")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StateDir holds the persisted host state record.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "handshake")
}

// SnapshotPath is where the latest host snapshot is kept.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "snapshot", "snapshot.json")
}

// InboxDir is the local staging directory flushed to the host.
func (c *Config) InboxDir() string {
	return filepath.Join(c.DataDir, "inbox")
}
