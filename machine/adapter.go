package machine

import (
	"context"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
)

// Mount identifies a pipette mount.
type Mount int

const (
	Left Mount = iota
	Right
)

func (m Mount) String() string {
	switch m {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// An Adapter represents the minimal liquid handler interface.
//
// Volumes are in microliters, rates are multipliers of the pipette's
// default flow rate and heights are in millimeters.
type Adapter interface {
	Aspirate(ctx context.Context, m Mount, vol float64, loc labware.Location, rate float64) error
	Dispense(ctx context.Context, m Mount, vol float64, loc labware.Location, rate float64) error
	AirGap(ctx context.Context, m Mount, vol float64) error
	BlowOut(ctx context.Context, m Mount, loc labware.Location) error
	TouchTip(ctx context.Context, m Mount, loc labware.Location, speed float64) error
	MoveTo(ctx context.Context, m Mount, loc labware.Location) error

	PickUpTip(ctx context.Context, m Mount) error
	DropTip(ctx context.Context, m Mount) error
	ReturnTip(ctx context.Context, m Mount) error
	ResetTipracks(ctx context.Context, m Mount) error
	HasTip(ctx context.Context, m Mount) (bool, error)

	EngageMagnet(ctx context.Context, height float64) error
	DisengageMagnet(ctx context.Context) error
	SetTemperature(ctx context.Context, celsius float64) error

	Delay(ctx context.Context, d time.Duration, msg string) error
	Pause(ctx context.Context, msg string) error
	Comment(msg string)
	Home(ctx context.Context) error
}

// A Prober descends onto the nominal surface at loc and reports where
// contact was actually made. Adapters without a probe do not implement it.
type Prober interface {
	ProbeZ(ctx context.Context, m Mount, loc labware.Location) (coord.Point, error)
}
