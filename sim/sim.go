// Package sim provides a liquid handler that runs protocols in memory.
//
// It keeps enough state to catch protocol mistakes: tips that are reused
// or missing, tips overfilled, and the volume each well gave and received.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/command"
	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/volume"
	"go.uber.org/zap"
)

var (
	ErrOverCapacity = fmt.Errorf("simulator: %w", volume.ErrOverCapacity)
	ErrTipAttached  = errors.New("tip already attached")
	ErrNoTip        = errors.New("no tip attached")
	ErrUnderflow    = errors.New("dispense exceeds tip contents")
	ErrNoPipette    = errors.New("no pipette on mount")
)

// Ledger is the liquid movement seen at one well.
type Ledger struct {
	Aspirated float64
	Dispensed float64
}

type tip struct {
	capacity float64
	attached bool
	contents float64

	picked, discarded int
}

// Simulator implements machine.Adapter.
type Simulator struct {
	mx sync.Mutex

	tips   map[machine.Mount]*tip
	wells  map[string]*Ledger
	cmds   []command.Command
	clock  time.Duration
	magnet float64
	engage bool
	temp   float64
	deck   level.ZOffsetter

	// OnPause is called for operator pauses. Nil resumes immediately.
	OnPause func(ctx context.Context, msg string) error

	// RealTime makes delays sleep instead of only advancing the clock.
	RealTime bool

	log *zap.Logger
}

var (
	_ machine.Adapter = &Simulator{}
	_ machine.Prober  = &Simulator{}
)

func New(log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		tips:  make(map[machine.Mount]*tip),
		wells: make(map[string]*Ledger),
		deck:  level.Flat{},
		log:   log,
	}
}

// Mount installs a pipette so its tip capacity is enforced.
func (s *Simulator) Mount(p machine.Pipette) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.tips[p.Mount] = &tip{capacity: p.MaxVolume}
}

// SetDeck sets the deck surface used to answer probes.
func (s *Simulator) SetDeck(z level.ZOffsetter) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.deck = z
}

func (s *Simulator) record(c command.Command) {
	s.cmds = append(s.cmds, c)
	s.log.Debug("command", zap.Stringer("command", c))
}

func mountWord(m machine.Mount) command.Word { return command.Word{W: 'M', Arg: float64(m)} }

func (s *Simulator) tip(m machine.Mount) (*tip, error) {
	t, ok := s.tips[m]
	if !ok {
		return nil, fmt.Errorf("%s: %w", m, ErrNoPipette)
	}
	return t, nil
}

func (s *Simulator) ledger(well string) *Ledger {
	l, ok := s.wells[well]
	if !ok {
		l = &Ledger{}
		s.wells[well] = l
	}
	return l
}

func (s *Simulator) draw(m machine.Mount, vol float64) (*tip, error) {
	t, err := s.tip(m)
	if err != nil {
		return nil, err
	}
	if !t.attached {
		return nil, fmt.Errorf("%s: %w", m, ErrNoTip)
	}
	if t.contents+vol > t.capacity+1e-9 {
		return nil, fmt.Errorf("%s: %.2f ul in a %.0f ul tip: %w", m, t.contents+vol, t.capacity, ErrOverCapacity)
	}
	t.contents += vol
	return t, nil
}

func (s *Simulator) Aspirate(ctx context.Context, m machine.Mount, vol float64, loc labware.Location, rate float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Aspirate, mountWord(m), command.Word{W: 'V', Arg: vol}, command.Word{W: 'R', Arg: rate}).At(loc.Point).WithMsg(loc.Well))
	if _, err := s.draw(m, vol); err != nil {
		return err
	}
	if loc.Well != "" {
		s.ledger(loc.Well).Aspirated += vol
	}
	return nil
}

func (s *Simulator) Dispense(ctx context.Context, m machine.Mount, vol float64, loc labware.Location, rate float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Dispense, mountWord(m), command.Word{W: 'V', Arg: vol}, command.Word{W: 'R', Arg: rate}).At(loc.Point).WithMsg(loc.Well))
	t, err := s.tip(m)
	if err != nil {
		return err
	}
	if !t.attached {
		return fmt.Errorf("%s: %w", m, ErrNoTip)
	}
	if vol > t.contents+1e-9 {
		return fmt.Errorf("%s: %.2f ul with %.2f ul in tip: %w", m, vol, t.contents, ErrUnderflow)
	}
	t.contents -= vol
	if loc.Well != "" {
		s.ledger(loc.Well).Dispensed += vol
	}
	return nil
}

func (s *Simulator) AirGap(ctx context.Context, m machine.Mount, vol float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.AirGap, mountWord(m), command.Word{W: 'V', Arg: vol}))
	_, err := s.draw(m, vol)
	return err
}

func (s *Simulator) BlowOut(ctx context.Context, m machine.Mount, loc labware.Location) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.BlowOut, mountWord(m)).At(loc.Point).WithMsg(loc.Well))
	t, err := s.tip(m)
	if err != nil {
		return err
	}
	if !t.attached {
		return fmt.Errorf("%s: %w", m, ErrNoTip)
	}
	if loc.Well != "" {
		s.ledger(loc.Well).Dispensed += t.contents
	}
	t.contents = 0
	return nil
}

func (s *Simulator) TouchTip(ctx context.Context, m machine.Mount, loc labware.Location, speed float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.TouchTip, mountWord(m), command.Word{W: 'S', Arg: speed}).At(loc.Point).WithMsg(loc.Well))
	t, err := s.tip(m)
	if err != nil {
		return err
	}
	if !t.attached {
		return fmt.Errorf("%s: %w", m, ErrNoTip)
	}
	return nil
}

func (s *Simulator) MoveTo(ctx context.Context, m machine.Mount, loc labware.Location) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Move, mountWord(m)).At(loc.Point).WithMsg(loc.Well))
	return ctx.Err()
}

func (s *Simulator) PickUpTip(ctx context.Context, m machine.Mount) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.PickUpTip, mountWord(m)))
	t, err := s.tip(m)
	if err != nil {
		return err
	}
	if t.attached {
		return fmt.Errorf("%s: %w", m, ErrTipAttached)
	}
	t.attached = true
	t.contents = 0
	t.picked++
	return nil
}

func (s *Simulator) discard(op command.Op, m machine.Mount) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(op, mountWord(m)))
	t, err := s.tip(m)
	if err != nil {
		return err
	}
	if !t.attached {
		return fmt.Errorf("%s: %w", m, ErrNoTip)
	}
	t.attached = false
	t.contents = 0
	t.discarded++
	return nil
}

func (s *Simulator) DropTip(ctx context.Context, m machine.Mount) error {
	return s.discard(command.DropTip, m)
}

func (s *Simulator) ReturnTip(ctx context.Context, m machine.Mount) error {
	return s.discard(command.ReturnTip, m)
}

func (s *Simulator) ResetTipracks(ctx context.Context, m machine.Mount) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.ResetTipracks, mountWord(m)))
	return nil
}

func (s *Simulator) HasTip(ctx context.Context, m machine.Mount) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	t, err := s.tip(m)
	if err != nil {
		return false, err
	}
	return t.attached, nil
}

func (s *Simulator) EngageMagnet(ctx context.Context, height float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.EngageMagnet, command.Word{W: 'H', Arg: height}))
	s.engage, s.magnet = true, height
	return nil
}

func (s *Simulator) DisengageMagnet(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.DisengageMagnet))
	s.engage, s.magnet = false, 0
	return nil
}

func (s *Simulator) SetTemperature(ctx context.Context, celsius float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.SetTemperature, command.Word{W: 'C', Arg: celsius}))
	s.temp = celsius
	return nil
}

func (s *Simulator) Delay(ctx context.Context, d time.Duration, msg string) error {
	s.mx.Lock()
	s.record(command.New(command.Delay, command.Word{W: 'P', Arg: d.Seconds()}).WithMsg(msg))
	s.clock += d
	realTime := s.RealTime
	s.mx.Unlock()

	if !realTime {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) Pause(ctx context.Context, msg string) error {
	s.mx.Lock()
	s.record(command.New(command.Pause).WithMsg(msg))
	fn := s.OnPause
	s.mx.Unlock()

	s.log.Info("paused", zap.String("message", msg))
	if fn == nil {
		return ctx.Err()
	}
	return fn(ctx, msg)
}

func (s *Simulator) Comment(msg string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Comment).WithMsg(msg))
}

func (s *Simulator) Home(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Home))
	return ctx.Err()
}

// ProbeZ reports contact with the nominal surface at loc shifted by the
// deck set with SetDeck.
func (s *Simulator) ProbeZ(ctx context.Context, m machine.Mount, loc labware.Location) (coord.Point, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.record(command.New(command.Probe, mountWord(m)).At(loc.Point).WithMsg(loc.Well))
	p := loc.Point
	if ok, dz := s.deck.OffsetZ(p.X, p.Y); ok {
		p.Z += dz
	}
	return p, ctx.Err()
}
