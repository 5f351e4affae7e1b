// Package config loads the orchestrator's single YAML application
// configuration, following the same load-then-unmarshal shape as the
// teacher's pkg/federation.LoadPlan: path validation, yaml.Unmarshal,
// defaults applied after parse.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgeorchestra/orchestra/pkg/auth"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/httpapi"
	"github.com/edgeorchestra/orchestra/pkg/schedule"
	"github.com/edgeorchestra/orchestra/pkg/security"
)

// Config is the top-level application config for orchestratord, unmarshaled
// from a single YAML file.
type Config struct {
	Database  devicestore.PostgresConfig `yaml:"database"`
	Cache     bus.Config                 `yaml:"cache"`
	HTTP      httpapi.Config             `yaml:"http"`
	RPC       RPCConfig                  `yaml:"rpc"`
	Heartbeat heartbeat.Config           `yaml:"heartbeat"`
	Round     RoundConfig                `yaml:"round"`
	TLS       security.TLSConfig         `yaml:"tls"`
	Auth      AuthConfig                 `yaml:"auth"`
	Log       LogConfig                  `yaml:"log"`
	Scheduler schedule.Config            `yaml:"scheduler"`
	Registry  string                     `yaml:"architecture_registry_path"`
}

// RPCConfig is the gRPC listener's section of the application config.
type RPCConfig struct {
	Port int `yaml:"port"`
}

// RoundConfig holds the coordinator's round timeout, expressed as an
// integer number of seconds in YAML (e.g. 120) rather than coordinator.Config's
// full tuning knob set, which remains code-level for tests.
type RoundConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

func (r RoundConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// AuthConfig mirrors pkg/auth.Config, minus the JWT secret which is
// generated at startup when left blank rather than stored in YAML.
type AuthConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	HeaderName  string `yaml:"header_name"`
	TokenExpiry string `yaml:"token_expiry"`
	Issuer      string `yaml:"issuer"`
}

func (a AuthConfig) toAuthConfig() (auth.Config, error) {
	expiry := time.Hour
	if a.TokenExpiry != "" {
		d, err := time.ParseDuration(a.TokenExpiry)
		if err != nil {
			return auth.Config{}, fmt.Errorf("config: parse auth.token_expiry: %w", err)
		}
		expiry = d
	}
	return auth.Config{
		Enabled:     a.Enabled,
		APIKey:      a.APIKey,
		HeaderName:  a.HeaderName,
		TokenExpiry: expiry,
		Issuer:      a.Issuer,
	}, nil
}

// LogConfig holds the log level and format settings. Load fills in their
// defaults; the packages of this module log through the standard-library
// logger and do not read these settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates path, unmarshals it, and applies defaults.
func Load(path string) (*Config, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = 9090
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = 30 * time.Second
	}
	if c.Heartbeat.Multiplier == 0 {
		c.Heartbeat.Multiplier = 3
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.HeaderName == "" {
		c.Auth.HeaderName = "X-API-Key"
	}
	if c.Scheduler.MaxThermalPressure == 0 {
		c.Scheduler = schedule.DefaultConfig(c.Scheduler.MinDevices)
	}
}

// AuthManagerConfig converts the YAML auth section into pkg/auth.Config.
func (c *Config) AuthManagerConfig() (auth.Config, error) {
	return c.Auth.toAuthConfig()
}

// validatePath rejects path traversal and non-YAML extensions, mirroring
// pkg/federation's LoadPlan/SavePlan guard.
func validatePath(path string) error {
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return fmt.Errorf("config: invalid file path: path traversal detected")
	}
	ext := filepath.Ext(clean)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config: invalid file extension: only .yaml and .yml are allowed")
	}
	if len(clean) > 256 {
		return fmt.Errorf("config: file path too long: maximum 256 characters allowed")
	}
	return nil
}
