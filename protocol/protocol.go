// Package protocol runs a fixed table of numbered steps and times them.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is one numbered entry of a protocol.
type Step struct {
	ID          int
	Description string
	Execute     bool
	Wait        time.Duration

	Body func(ctx context.Context, s Step) error
}

// Result is the time log entry of a step.
type Result struct {
	ID          int           `json:"step"`
	Description string        `json:"description"`
	Execute     bool          `json:"execution"`
	Wait        time.Duration `json:"wait_time"`
	Started     time.Time     `json:"started"`
	Elapsed     time.Duration `json:"execution_time"`
}

// StepError is returned when a step body fails. The run stops there.
type StepError struct {
	ID          int
	Description string
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.ID, e.Description, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Observer is told when steps start and finish.
type Observer interface {
	StepStarted(s Step)
	StepFinished(r Result)
}

type Sequencer struct {
	Steps     []Step
	Log       *zap.Logger
	Observers []Observer

	// Now defaults to time.Now.
	Now func() time.Time
}

var ErrDuplicateStep = errors.New("duplicate step id")

// NewSequencer copies steps so later changes to the table do not affect
// the run.
func NewSequencer(steps []Step, log *zap.Logger, obs ...Observer) (*Sequencer, error) {
	seen := make(map[int]bool, len(steps))
	for _, s := range steps {
		if seen[s.ID] {
			return nil, fmt.Errorf("step %d: %w", s.ID, ErrDuplicateStep)
		}
		seen[s.ID] = true
	}
	if log == nil {
		log = zap.NewNop()
	}
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return &Sequencer{Steps: cp, Log: log, Observers: obs}, nil
}

func (q *Sequencer) now() time.Time {
	if q.Now == nil {
		return time.Now()
	}
	return q.Now()
}

// Run executes every enabled step in order. Disabled steps still get a
// result so the time log lists the whole table. The results up to and
// including a failed step are returned with its error.
func (q *Sequencer) Run(ctx context.Context) ([]Result, error) {
	log := q.Log
	if log == nil {
		log = zap.NewNop()
	}

	res := make([]Result, 0, len(q.Steps))
	for _, s := range q.Steps {
		r := Result{ID: s.ID, Description: s.Description, Execute: s.Execute, Wait: s.Wait}
		if !s.Execute {
			res = append(res, r)
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, &StepError{ID: s.ID, Description: s.Description, Err: err}
		}

		for _, o := range q.Observers {
			o.StepStarted(s)
		}
		log.Info("step started", zap.Int("step", s.ID), zap.String("description", s.Description))

		r.Started = q.now()
		var err error
		if s.Body != nil {
			err = s.Body(ctx, s)
		}
		r.Elapsed = q.now().Sub(r.Started)
		res = append(res, r)

		if err != nil {
			log.Error("step failed", zap.Int("step", s.ID), zap.Error(err))
			return res, &StepError{ID: s.ID, Description: s.Description, Err: err}
		}
		log.Info("step finished", zap.Int("step", s.ID), zap.Duration("elapsed", r.Elapsed))
		for _, o := range q.Observers {
			o.StepFinished(r)
		}
	}
	return res, nil
}

// Delayer is the part of a machine a wait step needs.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration, msg string) error
}

// Wait returns a body that delays for the step's wait time.
func Wait(d Delayer, msg string) func(ctx context.Context, s Step) error {
	return func(ctx context.Context, s Step) error {
		return d.Delay(ctx, s.Wait, fmt.Sprintf(msg, s.Wait.Seconds()))
	}
}

// Then chains bodies into one.
func Then(bodies ...func(ctx context.Context, s Step) error) func(ctx context.Context, s Step) error {
	return func(ctx context.Context, s Step) error {
		for _, b := range bodies {
			if err := b(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}
