package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/bridge"
	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/robot"
	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/COVIDWarriors/CWarriors-Covid19/sim"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// openAdapter connects to the robot selected by cfg. The returned func
// releases it.
func openAdapter(ctx context.Context, cfg config.RobotConfig, log *zap.Logger) (machine.Adapter, func(), error) {
	switch cfg.Adapter {
	case config.AdapterSerial:
		p, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Port, err)
		}
		log = log.With(zap.String("port", cfg.Port))
		a := robot.NewAdapter(p, log)
		return a, poll(ctx, a, cfg.StatusInterval, log), nil
	case config.AdapterBridge:
		c := bridge.Dial(cfg.Bridge, log)
		log = log.With(zap.String("bridge", cfg.Bridge))
		a := robot.NewAdapter(c, log)
		return a, poll(ctx, a, cfg.StatusInterval, log), nil
	}
	s := sim.New(log)
	s.RealTime = cfg.RealTime
	return s, func() {}, nil
}

// poll keeps status reports flowing until the adapter is released.
func poll(ctx context.Context, a *robot.Adapter, interval time.Duration, log *zap.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		defer close(done)
		a.Poll(ctx, interval)
	}()
	return func() {
		cancel()
		<-done
		if err := a.Close(); err != nil {
			log.Warn("close robot", zap.Error(err))
		}
	}
}

// runner executes one station run and records it.
type runner struct {
	cfg   *config.Config
	log   *zap.Logger
	store *runlog.Store

	// prompter overrides pausing the robot for tip replacement.
	prompter machine.Prompter

	machineObservers []machine.Observer
	stepObservers    []protocol.Observer

	// onState receives robot status reports while the run is connected.
	onState func(robot.Status)
}

func (r *runner) run(ctx context.Context) (runlog.Run, []protocol.Result, error) {
	rec := runlog.NewRun(r.cfg.Station, numSamples(r.cfg), time.Now())
	log := r.log.With(zap.String("run", rec.ID.String()), zap.String("station", r.cfg.Station))

	results, err := r.execute(ctx, log)
	rec.Finished = time.Now()
	if err != nil {
		rec.Err = err.Error()
		log.Error("run failed", zap.Error(err))
	}

	if werr := writeTimeLog(r.cfg.Logging.Dir, rec, results); werr != nil {
		log.Warn("time log", zap.Error(werr))
	}
	if r.store != nil {
		// the run is recorded even when ctx was canceled
		if serr := r.store.SaveRun(context.Background(), rec, results); serr != nil {
			log.Warn("save run", zap.Error(serr))
		}
	}
	return rec, results, err
}

func (r *runner) execute(ctx context.Context, log *zap.Logger) ([]protocol.Result, error) {
	a, release, err := openAdapter(ctx, r.cfg.Robot, log)
	if err != nil {
		return nil, err
	}
	defer release()

	if ra, ok := a.(*robot.Adapter); ok && r.onState != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			for {
				select {
				case s := <-ra.State():
					r.onState(s)
				case <-stop:
					return
				}
			}
		}()
	}

	deck, err := loadDeck(r.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	m := machine.NewMachine(a, log)
	if r.prompter != nil {
		m.SetPrompter(r.prompter)
	}
	for _, o := range r.machineObservers {
		m.Observe(o)
	}
	st, err := buildStation(r.cfg, m, deck)
	if err != nil {
		return nil, err
	}

	obs := append([]protocol.Observer{protocol.Banner{
		Commenter: m,
		Tips: func() int {
			return m.Tips.Used(machine.Left) + m.Tips.Used(machine.Right)
		},
	}}, r.stepObservers...)
	seq, err := protocol.NewSequencer(st.Steps(), log, obs...)
	if err != nil {
		return nil, err
	}

	if err := st.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	results, err := seq.Run(ctx)
	if err != nil {
		return results, err
	}
	if err := st.Finish(ctx); err != nil {
		return results, fmt.Errorf("finish: %w", err)
	}
	for _, l := range st.Summary() {
		log.Info(l)
	}
	return results, nil
}

// writeTimeLog stores the step times next to each other as TSV and JSON.
func writeTimeLog(dir string, rec runlog.Run, results []protocol.Result) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("time_log_station_%s_%s", rec.Station, rec.Started.Format("20060102_150405")))
	for ext, write := range map[string]func(io.Writer, []protocol.Result) error{
		".tsv":  runlog.WriteTSV,
		".json": runlog.WriteJSON,
	} {
		f, err := os.Create(base + ext)
		if err != nil {
			return fmt.Errorf("failed to create time log: %w", err)
		}
		err = write(f, results)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write time log: %w", err)
		}
	}
	return nil
}

// stdinPrompter asks the operator on the terminal instead of pausing the
// robot.
type stdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newStdinPrompter() stdinPrompter {
	return stdinPrompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (p stdinPrompter) Prompt(ctx context.Context, msg string) error {
	fmt.Fprintf(p.out, "%s\nPress Enter to resume.\n", msg)
	line := make(chan error, 1)
	go func() {
		_, err := p.in.ReadString('\n')
		line <- err
	}()
	select {
	case err := <-line:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
