package robot

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = "armlink.json"

// DefaultAddress is the controller address shown on first start.
const DefaultAddress = "192.168.1.50"

// Config holds the console configuration
type Config struct {
	Address    string           `json:"address" yaml:"address" env:"ARMLINK_ADDRESS"`
	LogLevel   string           `json:"logLevel,omitempty" yaml:"logLevel,omitempty" env:"ARMLINK_LOG_LEVEL"`
	LogFile    string           `json:"logFile,omitempty" yaml:"logFile,omitempty" env:"ARMLINK_LOG_FILE"`
	Link       LinkConfig       `json:"link" yaml:"link"`
	Settings   RobotSettings    `json:"settings" yaml:"settings"`
	Controller ControllerConfig `json:"controller" yaml:"controller"`
}

// LinkConfig tunes the connection to the controller
type LinkConfig struct {
	ProbeIntervalMs int     `json:"probeIntervalMs" yaml:"probeIntervalMs" env:"ARMLINK_PROBE_INTERVAL_MS"`
	SendIntervalMs  int     `json:"sendIntervalMs" yaml:"sendIntervalMs" env:"ARMLINK_SEND_INTERVAL_MS"`
	Deadband        float64 `json:"deadband" yaml:"deadband" env:"ARMLINK_DEADBAND"`
}

// ProbeInterval returns the liveness probe period.
func (l LinkConfig) ProbeInterval() time.Duration {
	return time.Duration(l.ProbeIntervalMs) * time.Millisecond
}

// SendInterval returns the minimum spacing of move commands.
func (l LinkConfig) SendInterval() time.Duration {
	return time.Duration(l.SendIntervalMs) * time.Millisecond
}

// ControllerConfig holds configuration for the reference controller
type ControllerConfig struct {
	Listen           string      `json:"listen" yaml:"listen" env:"ARMLINK_LISTEN"`
	SerialPort       string      `json:"serialPort,omitempty" yaml:"serialPort,omitempty" env:"ARMLINK_SERIAL_PORT"`
	StatusIntervalMs int         `json:"statusIntervalMs" yaml:"statusIntervalMs"`
	Calibration      Calibration `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// IsCalibrated returns true if the servo arm has calibration data
func (c *ControllerConfig) IsCalibrated() bool {
	return len(c.Calibration) == NumJoints
}

// StatusInterval returns the status frame period.
func (c ControllerConfig) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalMs) * time.Millisecond
}

// DefaultConfig returns a configuration with every field populated.
func DefaultConfig() *Config {
	return &Config{
		Address:  DefaultAddress,
		LogLevel: "info",
		LogFile:  "armlink.log",
		Link: LinkConfig{
			ProbeIntervalMs: 2000,
			SendIntervalMs:  50,
			Deadband:        0.5,
		},
		Settings: DefaultSettings(),
		Controller: ControllerConfig{
			Listen:           ":81",
			StatusIntervalMs: 100,
		},
	}
}

// LoadConfigFrom loads configuration from a specific file. A missing file
// yields the defaults. Environment variables override file values.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	case isYAML(path):
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the console cannot run with.
func (c *Config) Validate() error {
	if err := ValidateAddress(c.Address); err != nil {
		return err
	}
	if c.Link.ProbeIntervalMs <= 0 {
		return fmt.Errorf("probe interval must be positive, got %dms", c.Link.ProbeIntervalMs)
	}
	if c.Link.SendIntervalMs <= 0 {
		return fmt.Errorf("send interval must be positive, got %dms", c.Link.SendIntervalMs)
	}
	if c.Link.Deadband < 0 {
		return fmt.Errorf("deadband must not be negative, got %.2f", c.Link.Deadband)
	}
	if c.Controller.StatusIntervalMs <= 0 {
		return fmt.Errorf("status interval must be positive, got %dms", c.Controller.StatusIntervalMs)
	}
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

var hostnameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,62})(\.[A-Za-z0-9]([A-Za-z0-9-]{0,62}))*$`)

// ValidateAddress accepts an IP address or hostname without scheme or port.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	if net.ParseIP(addr) != nil || hostnameRe.MatchString(addr) {
		return nil
	}
	return fmt.Errorf("invalid address %q", addr)
}
