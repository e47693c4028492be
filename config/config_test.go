package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rnaprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
station: c
robot:
  adapter: serial
  port: /dev/ttyUSB1
  status_interval: 250ms
station_c:
  num_samples: 24
  master_mix: 4
station_b:
  steps:
    3: false
  lysis:
    delay: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "C", cfg.Station)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Robot.Port)
	assert.Equal(t, 115200, cfg.Robot.Baud)
	assert.Equal(t, 250*time.Millisecond, cfg.Robot.StatusInterval)

	assert.Equal(t, 24, cfg.StationC.NumSamples)
	assert.Equal(t, 4, cfg.StationC.MasterMix)
	assert.Len(t, cfg.StationC.MasterMixes, 4)
	assert.Equal(t, 8.25, cfg.StationC.ScrewcapDiameter)

	// overrides merge with the default step table
	assert.Equal(t, map[int]bool{1: false, 3: false}, cfg.StationB.Steps)
	assert.Equal(t, 2*time.Second, cfg.StationB.Lysis.Delay)
	assert.Equal(t, "Lysis", cfg.StationB.Lysis.Name)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(write(t, "robot: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	for name, tc := range map[string]func(*Config){
		"adapter":   func(c *Config) { c.Robot.Adapter = "usb" },
		"baud":      func(c *Config) { c.Robot.Adapter = AdapterSerial; c.Robot.Baud = 0 },
		"port":      func(c *Config) { c.Robot.Adapter = AdapterSerial; c.Robot.Port = "" },
		"bridge":    func(c *Config) { c.Robot.Adapter = AdapterBridge },
		"station":   func(c *Config) { c.Station = "A" },
		"samples":   func(c *Config) { c.StationB.NumSamples = 0 },
		"mastermix": func(c *Config) { c.Station = "C"; c.StationC.MasterMix = 9 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rnaprep.yaml")
	cfg := Default()
	cfg.Station = "C"
	cfg.StationC.NumSamples = 40
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, got.StationC.NumSamples)
	assert.Equal(t, cfg.StationB.Lysis, got.StationB.Lysis)
}
