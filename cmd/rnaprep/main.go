package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	stationID  string
	adapter    string
	port       string
	baud       int
	bridgeURL  string
	dbPath     string
	logDir     string
	dataDir    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rnaprep",
	Short: "Run the RNA extraction and qPCR setup stations",
	Long: `rnaprep drives a liquid handling robot through the Station B (RNA
extraction with magnetic beads) and Station C (qPCR setup) protocols.

Commands go to a simulator, a robot on a serial port or a robot behind a
websocket bridge.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file (default: built-in defaults)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVarP(&stationID, "station", "s", "B", "Station to run (B or C)")
	f.StringVar(&adapter, "adapter", config.AdapterSim, "Robot adapter: sim, serial or bridge")
	f.StringVar(&port, "port", "/dev/ttyACM0", "Serial port of the robot")
	f.IntVar(&baud, "baud", 115200, "Serial baud rate")
	f.StringVar(&bridgeURL, "bridge", "", "Websocket URL of the robot bridge")
	f.StringVar(&dbPath, "db", "", "SQLite run history database (default: disabled)")
	f.StringVar(&logDir, "log-dir", ".", "Directory for step time logs")
	f.StringVar(&dataDir, "dir", "./data", "Data directory to use")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flags set on the command line
// on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if configPath == "" || f.Changed("station") {
		cfg.Station = strings.ToUpper(stationID)
	}
	if f.Changed("adapter") {
		cfg.Robot.Adapter = adapter
	}
	if f.Changed("port") {
		cfg.Robot.Port = port
	}
	if f.Changed("baud") {
		cfg.Robot.Baud = baud
	}
	if f.Changed("bridge") {
		cfg.Robot.Bridge = bridgeURL
	}
	if f.Changed("db") {
		cfg.DB = dbPath
	}
	if f.Changed("log-dir") {
		cfg.Logging.Dir = logDir
	}
	if f.Changed("dir") {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.Logging.Verbose = true
	}
	return cfg, cfg.Validate()
}
