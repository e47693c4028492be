package machine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TipStatus is the result of a tip acquisition check.
type TipStatus int

const (
	TipsOK TipStatus = iota
	TipsNeedReplacement
)

func (s TipStatus) String() string {
	if s == TipsNeedReplacement {
		return "need replacement"
	}
	return "ok"
}

// TipsPerRack is the number of tips in a rack.
const TipsPerRack = 96

type tipCount struct{ used, max int }

// TipTracker counts tips used per mount.
type TipTracker struct {
	counts map[Mount]*tipCount
}

func NewTipTracker() *TipTracker {
	return &TipTracker{counts: make(map[Mount]*tipCount)}
}

// Register sets the tip budget of p from its rack count.
func (t *TipTracker) Register(p Pipette) {
	t.counts[p.Mount] = &tipCount{max: TipsPerRack * p.TipRacks}
}

func (t *TipTracker) get(m Mount) *tipCount {
	c, ok := t.counts[m]
	if !ok {
		c = &tipCount{}
		t.counts[m] = c
	}
	return c
}

// Acquire checks whether the racks on m still have tips.
func (t *TipTracker) Acquire(m Mount) TipStatus {
	c := t.get(m)
	if c.used >= c.max {
		return TipsNeedReplacement
	}
	return TipsOK
}

// Replaced resets the count after the operator swaps the racks.
func (t *TipTracker) Replaced(m Mount) { t.get(m).used = 0 }

// Use records n tips consumed. The count stops at the budget.
func (t *TipTracker) Use(m Mount, n int) {
	c := t.get(m)
	c.used += n
	if c.used > c.max {
		c.used = c.max
	}
}

func (t *TipTracker) Used(m Mount) int { return t.get(m).used }
func (t *TipTracker) Max(m Mount) int  { return t.get(m).max }

// Racks returns the used tips in racks.
func (t *TipTracker) Racks(m Mount) float64 {
	return float64(t.Used(m)) / TipsPerRack
}

// PickUp attaches a tip to p, asking for new racks when they run out.
// Nothing is picked up when a tip is already attached.
func (m *Machine) PickUp(ctx context.Context, p Pipette) error {
	if m.Tips.Acquire(p.Mount) == TipsNeedReplacement {
		err := m.hold(ctx, fmt.Sprintf("Replace %gµl tipracks before resuming.", p.MaxVolume))
		if err != nil {
			return err
		}
		err = m.ResetTipracks(ctx, p.Mount)
		if err != nil {
			return fmt.Errorf("reset tipracks: %w", err)
		}
		m.Tips.Replaced(p.Mount)
		m.log.Info("tipracks replaced", zap.Stringer("mount", p.Mount))
	}

	has, err := m.HasTip(ctx, p.Mount)
	if err != nil {
		return fmt.Errorf("tip state: %w", err)
	}
	if has {
		return nil
	}
	err = m.PickUpTip(ctx, p.Mount)
	if err != nil {
		return fmt.Errorf("pick up tip: %w", err)
	}
	return nil
}

// Discard drops the tip, or returns it to the rack when recycling, and
// counts one tip per channel.
func (m *Machine) Discard(ctx context.Context, p Pipette, recycle bool) error {
	var err error
	if recycle {
		err = m.ReturnTip(ctx, p.Mount)
	} else {
		err = m.DropTip(ctx, p.Mount)
	}
	if err != nil {
		return fmt.Errorf("discard tip: %w", err)
	}

	n := p.Channels
	if n < 1 {
		n = 1
	}
	m.Tips.Use(p.Mount, n)
	for _, o := range m.observers {
		o.TipsUsed(p, n)
	}
	return nil
}
