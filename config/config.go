// Package config loads the run configuration of a station.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationb"
	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationc"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Adapter kinds.
const (
	AdapterSim    = "sim"
	AdapterSerial = "serial"
	AdapterBridge = "bridge"
)

// Config holds everything a run needs besides the deck itself.
type Config struct {
	// Station is B or C.
	Station string `yaml:"station"`

	Robot RobotConfig `yaml:"robot"`

	Logging LoggingConfig `yaml:"logging"`

	// DB is the run history database. Empty disables it.
	DB string `yaml:"db"`

	// Addr is where serve listens.
	Addr string `yaml:"addr"`

	// DataDir holds the deck leveling mesh and the files served under /data/.
	DataDir string `yaml:"data_dir"`

	StationB stationb.Config `yaml:"station_b"`
	StationC stationc.Config `yaml:"station_c"`
}

// RobotConfig selects how commands reach the robot.
type RobotConfig struct {
	Adapter string `yaml:"adapter"` // sim, serial, bridge

	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// Bridge is the websocket URL of a network bridge.
	Bridge string `yaml:"bridge"`

	// StatusInterval is how often a connected robot is polled.
	StatusInterval time.Duration `yaml:"status_interval"`

	// RealTime makes the simulator sleep through delays.
	RealTime bool `yaml:"real_time"`
}

type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`

	// Dir receives the step time log of every run.
	Dir string `yaml:"dir"`
}

func Default() *Config {
	return &Config{
		Station: "B",
		Robot: RobotConfig{
			Adapter:        AdapterSim,
			Port:           "/dev/ttyACM0",
			Baud:           115200,
			StatusInterval: time.Second,
		},
		Logging:  LoggingConfig{Dir: "."},
		Addr:     ":8000",
		DataDir:  "./data",
		StationB: stationb.Default(),
		StationC: stationc.Default(),
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Station = strings.ToUpper(cfg.Station)

	return cfg, cfg.Validate()
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks the adapter settings and the selected station.
func (c *Config) Validate() error {
	switch c.Robot.Adapter {
	case AdapterSim:
	case AdapterSerial:
		if c.Robot.Port == "" {
			return fmt.Errorf("%w: serial adapter needs a port", ErrInvalid)
		}
		if c.Robot.Baud <= 0 {
			return fmt.Errorf("%w: baud must be positive, got %d", ErrInvalid, c.Robot.Baud)
		}
	case AdapterBridge:
		if c.Robot.Bridge == "" {
			return fmt.Errorf("%w: bridge adapter needs a url", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown adapter %q (valid: %s, %s, %s)", ErrInvalid, c.Robot.Adapter, AdapterSim, AdapterSerial, AdapterBridge)
	}

	var err error
	switch c.Station {
	case "B":
		err = c.StationB.Validate()
	case "C":
		err = c.StationC.Validate()
	default:
		return fmt.Errorf("%w: unknown station %q", ErrInvalid, c.Station)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
