package controller

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/labjacker/labjacker/controller/calibration"
	"github.com/labjacker/labjacker/controller/telemetry"
)

// AuthConfig enables HTTP basic auth on the API when User is set.
// Password holds a bcrypt hash, never the cleartext.
type AuthConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Config is the application configuration, loaded once at startup.
type Config struct {
	Listen          string `yaml:"listen"`
	DevMode         bool   `yaml:"dev_mode"`
	Database        string `yaml:"database"`
	CalibrationFile string `yaml:"calibration_file"`
	// PollIntervalMs is the sensor polling cadence in milliseconds.
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// GateTimeoutSec bounds how long a run waits for each operator-supplied
	// parameter. Zero waits forever.
	GateTimeoutSec int                  `yaml:"gate_timeout_sec"`
	Auth           AuthConfig           `yaml:"auth"`
	MQTT           telemetry.MQTTConfig `yaml:"mqtt"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8090",
		DevMode:         true,
		Database:        "labjacker.db",
		CalibrationFile: calibration.DefaultFile,
		PollIntervalMs:  500,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// PollInterval returns the polling cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// GateTimeout returns the parameter gate timeout as a duration.
func (c Config) GateTimeout() time.Duration {
	return time.Duration(c.GateTimeoutSec) * time.Second
}
