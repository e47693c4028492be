package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/command"
	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"go.uber.org/zap"
)

// Adapter implements machine.Adapter over a Conn.
type Adapter struct {
	*Conn

	log *zap.Logger

	mx      sync.Mutex
	last    Status
	waiters []chan Status
	state   chan Status
	probes  []ProbeResult

	done chan struct{}
	wg   sync.WaitGroup
}

var (
	_ machine.Adapter = &Adapter{}
	_ machine.Prober  = &Adapter{}
)

// NewAdapter starts reading device reports from rw. Close stops it.
func NewAdapter(rw io.ReadWriter, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{
		Conn:  NewConn(rw),
		log:   log,
		state: make(chan Status, 1),
		done:  make(chan struct{}),
	}
	a.wg.Add(1)
	go a.readLoop()
	return a
}

func (a *Adapter) Close() error {
	err := a.Conn.Close()
	a.wg.Wait()
	return err
}

func (a *Adapter) readLoop() {
	defer a.wg.Done()
	defer close(a.done)
	buf := make([]byte, 1024)
	for {
		n, err := a.Read(buf)
		if errors.Is(err, io.ErrShortBuffer) {
			a.log.Error("device line too long")
			continue
		}
		if err != nil {
			if !a.closed() {
				a.log.Error("read from device", zap.Error(err))
			}
			return
		}
		a.handle(string(buf[:n]))
	}
}

func (a *Adapter) handle(data string) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case '<':
		a.mx.Lock()
		stat, err := parseStatus(a.last, data)
		if err != nil {
			a.mx.Unlock()
			a.log.Error("parse status", zap.Error(err))
			return
		}
		a.last = *stat
		waiters := a.waiters
		a.waiters = nil
		a.mx.Unlock()

		for _, w := range waiters {
			w <- *stat
		}
		select {
		case a.state <- *stat:
		default:
		}
	case '[':
		prb, err := parseProbe(data)
		if err != nil {
			a.log.Error("parse push message", zap.Error(err))
			return
		}
		a.mx.Lock()
		a.probes = append(a.probes, *prb)
		a.mx.Unlock()
	default:
		a.log.Debug("device", zap.String("line", data))
	}
}

// State delivers status reports as they arrive. Reports are dropped when
// nobody is reading.
func (a *Adapter) State() chan Status { return a.state }

func (a *Adapter) CurrentState() Status {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.last
}

// QueryStatus asks the device for a fresh status report.
func (a *Adapter) QueryStatus(ctx context.Context) (Status, error) {
	ch := make(chan Status, 1)
	a.mx.Lock()
	a.waiters = append(a.waiters, ch)
	a.mx.Unlock()

	if err := a.WriteByte('?'); err != nil {
		return Status{}, err
	}
	select {
	case s := <-ch:
		return s, nil
	case <-a.done:
		return Status{}, io.ErrClosedPipe
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Poll requests a status report every interval until ctx is done.
func (a *Adapter) Poll(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-t.C:
			if err := a.WriteByte('?'); err != nil {
				return
			}
		}
	}
}

func mountWord(m machine.Mount) command.Word { return command.Word{W: 'M', Arg: float64(m)} }

func at(c command.Command, loc labware.Location) command.Command {
	return c.At(loc.Point).WithMsg(loc.Well)
}

func (a *Adapter) run(ctx context.Context, c command.Command) error {
	a.log.Debug("send", zap.Stringer("command", c))
	err := a.Run(ctx, c)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Op, err)
	}
	return nil
}

func (a *Adapter) Aspirate(ctx context.Context, m machine.Mount, vol float64, loc labware.Location, rate float64) error {
	return a.run(ctx, at(command.New(command.Aspirate, mountWord(m), command.Word{W: 'V', Arg: vol}, command.Word{W: 'R', Arg: rate}), loc))
}

func (a *Adapter) Dispense(ctx context.Context, m machine.Mount, vol float64, loc labware.Location, rate float64) error {
	return a.run(ctx, at(command.New(command.Dispense, mountWord(m), command.Word{W: 'V', Arg: vol}, command.Word{W: 'R', Arg: rate}), loc))
}

func (a *Adapter) AirGap(ctx context.Context, m machine.Mount, vol float64) error {
	return a.run(ctx, command.New(command.AirGap, mountWord(m), command.Word{W: 'V', Arg: vol}))
}

func (a *Adapter) BlowOut(ctx context.Context, m machine.Mount, loc labware.Location) error {
	return a.run(ctx, at(command.New(command.BlowOut, mountWord(m)), loc))
}

func (a *Adapter) TouchTip(ctx context.Context, m machine.Mount, loc labware.Location, speed float64) error {
	return a.run(ctx, at(command.New(command.TouchTip, mountWord(m), command.Word{W: 'S', Arg: speed}), loc))
}

func (a *Adapter) MoveTo(ctx context.Context, m machine.Mount, loc labware.Location) error {
	return a.run(ctx, at(command.New(command.Move, mountWord(m)), loc))
}

func (a *Adapter) PickUpTip(ctx context.Context, m machine.Mount) error {
	return a.run(ctx, command.New(command.PickUpTip, mountWord(m)))
}

func (a *Adapter) DropTip(ctx context.Context, m machine.Mount) error {
	return a.run(ctx, command.New(command.DropTip, mountWord(m)))
}

func (a *Adapter) ReturnTip(ctx context.Context, m machine.Mount) error {
	return a.run(ctx, command.New(command.ReturnTip, mountWord(m)))
}

func (a *Adapter) ResetTipracks(ctx context.Context, m machine.Mount) error {
	return a.run(ctx, command.New(command.ResetTipracks, mountWord(m)))
}

// HasTip queries the device status.
func (a *Adapter) HasTip(ctx context.Context, m machine.Mount) (bool, error) {
	if m != machine.Left && m != machine.Right {
		return false, fmt.Errorf("invalid mount %d", m)
	}
	s, err := a.QueryStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	return s.Tips[m], nil
}

func (a *Adapter) EngageMagnet(ctx context.Context, height float64) error {
	return a.run(ctx, command.New(command.EngageMagnet, command.Word{W: 'H', Arg: height}))
}

func (a *Adapter) DisengageMagnet(ctx context.Context) error {
	return a.run(ctx, command.New(command.DisengageMagnet))
}

func (a *Adapter) SetTemperature(ctx context.Context, celsius float64) error {
	return a.run(ctx, command.New(command.SetTemperature, command.Word{W: 'C', Arg: celsius}))
}

// Delay is timed by the device; the acknowledgement arrives when it ends.
func (a *Adapter) Delay(ctx context.Context, d time.Duration, msg string) error {
	return a.run(ctx, command.New(command.Delay, command.Word{W: 'P', Arg: d.Seconds()}).WithMsg(msg))
}

// Pause holds the device until the operator resumes it there.
func (a *Adapter) Pause(ctx context.Context, msg string) error {
	return a.run(ctx, command.New(command.Pause).WithMsg(msg))
}

func (a *Adapter) Comment(msg string) {
	err := a.run(context.Background(), command.New(command.Comment).WithMsg(msg))
	if err != nil {
		a.log.Warn("comment", zap.Error(err))
	}
}

func (a *Adapter) Home(ctx context.Context) error {
	return a.run(ctx, command.New(command.Home))
}

// ProbeZ probes at loc and returns the reported contact point.
func (a *Adapter) ProbeZ(ctx context.Context, m machine.Mount, loc labware.Location) (coord.Point, error) {
	a.mx.Lock()
	a.probes = nil
	a.mx.Unlock()

	if err := a.run(ctx, at(command.New(command.Probe, mountWord(m)), loc)); err != nil {
		return coord.Point{}, err
	}

	a.mx.Lock()
	probes := a.probes
	a.mx.Unlock()
	if len(probes) == 0 {
		return coord.Point{}, errors.New("no probe data returned")
	}
	if !probes[0].Valid {
		return coord.Point{}, errors.New("probe made no contact")
	}
	return probes[0].Point, nil
}
