// Package config loads the application configuration from a YAML file
// with environment variable overrides, and provides structured access to
// credentials, tariff selection, proxy and logging settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Auth method names accepted in configuration.
const (
	AuthMethodB2C    = "b2c"
	AuthMethodLegacy = "legacy"
)

// envPrefix is the environment variable prefix for overrides, so
// AW_USERNAME overrides username, AW_REFRESH_TOKEN overrides
// refresh-token, and so on.
const envPrefix = "aw"

// Config is the application's configuration, loaded from a YAML file and
// overridable through AW_* environment variables.
type Config struct {
	// Username and Password are the account credentials.
	Username string `yaml:"username" envconfig:"USERNAME"`
	Password string `yaml:"password" envconfig:"PASSWORD"`

	// AccountID is the vendor account number (required for the b2c
	// method, learned at login for legacy).
	AccountID string `yaml:"account-id" envconfig:"ACCOUNT_ID"`

	// DeviceID resumes an existing legacy session and skips device
	// registration. Leave empty to register a new device.
	DeviceID string `yaml:"device-id" envconfig:"DEVICE_ID"`

	// RefreshToken seeds the b2c variant so the first refresh can skip
	// the full login flow.
	RefreshToken string `yaml:"refresh-token" envconfig:"REFRESH_TOKEN"`

	// AuthMethod selects the login variant: "b2c" (default) or "legacy".
	AuthMethod string `yaml:"auth-method" envconfig:"AUTH_METHOD"`

	// Area and Tariff select the applicable tariff table entry.
	Area   string `yaml:"area" envconfig:"AREA"`
	Tariff string `yaml:"tariff" envconfig:"TARIFF"`

	// CustomRate and CustomService apply only to custom tariffs. They are
	// independent figures: volumetric rate and standing charge.
	CustomRate    *float64 `yaml:"custom-rate,omitempty" envconfig:"CUSTOM_RATE"`
	CustomService *float64 `yaml:"custom-service,omitempty" envconfig:"CUSTOM_SERVICE"`

	// ProxyURL routes outbound requests through a proxy when set.
	ProxyURL string `yaml:"proxy-url,omitempty" envconfig:"PROXY_URL"`

	// UpdateIntervalSeconds is the bridge's usage polling interval.
	UpdateIntervalSeconds int `yaml:"update-interval-seconds,omitempty" envconfig:"UPDATE_INTERVAL_SECONDS"`

	// BridgePort is the local status bridge listen port; 0 disables it.
	BridgePort int `yaml:"bridge-port,omitempty" envconfig:"BRIDGE_PORT"`

	// SnapshotPath is where encrypted session snapshots are written; the
	// passphrase derives the encryption key. Both empty disables
	// snapshotting.
	SnapshotPath       string `yaml:"snapshot-path,omitempty" envconfig:"SNAPSHOT_PATH"`
	SnapshotPassphrase string `yaml:"snapshot-passphrase,omitempty" envconfig:"SNAPSHOT_PASSPHRASE"`

	// Debug enables debug logging; LoggingToFile switches output to a
	// rotating file under LogDir.
	Debug         bool   `yaml:"debug,omitempty" envconfig:"DEBUG"`
	LoggingToFile bool   `yaml:"logging-to-file,omitempty" envconfig:"LOGGING_TO_FILE"`
	LogDir        string `yaml:"log-dir,omitempty" envconfig:"LOG_DIR"`
}

// Load reads the YAML file at path (missing files are tolerated so a
// purely env-driven setup works), applies AW_* environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, errUnmarshal)
			}
		case os.IsNotExist(err):
			// Fall through to environment-only configuration.
		default:
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides failed: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AuthMethod == "" {
		c.AuthMethod = AuthMethodB2C
	}
	c.AuthMethod = strings.ToLower(strings.TrimSpace(c.AuthMethod))
	if c.UpdateIntervalSeconds <= 0 {
		c.UpdateIntervalSeconds = 900
	}
}

func (c *Config) validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("config: username and password are required")
	}
	switch c.AuthMethod {
	case AuthMethodB2C:
		if c.AccountID == "" {
			return fmt.Errorf("config: account-id is required for the b2c auth method")
		}
	case AuthMethodLegacy:
	default:
		return fmt.Errorf("config: unknown auth method %q", c.AuthMethod)
	}
	return nil
}
