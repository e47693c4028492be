package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var waitEnter bool

// runCmd executes the configured station once
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured station protocol",
	Long: `Runs every enabled step of the station protocol against the selected
robot adapter, then writes the step time log to --log-dir and, with --db,
to the run history.

Example:
  rnaprep run --station C --adapter serial --port /dev/ttyACM0`,
	RunE: runStation,
}

func init() {
	runCmd.Flags().BoolVar(&waitEnter, "wait-enter", false, "Ask for tip replacement on the terminal instead of pausing the robot")
}

func runStation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := &runner{cfg: cfg, log: logger}
	if waitEnter {
		r.prompter = newStdinPrompter()
	}
	if cfg.DB != "" {
		store, err := runlog.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		r.store = store
	}

	rec, results, err := r.run(ctx)
	if err != nil {
		return err
	}
	logger.Info("run finished",
		zap.Stringer("run", rec.ID),
		zap.Int("steps", len(results)),
		zap.Duration("elapsed", rec.Finished.Sub(rec.Started)),
	)
	return nil
}
