package machine

import (
	"context"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"go.uber.org/zap"
)

// Pipette describes a loaded pipette.
type Pipette struct {
	Name     string
	Mount    Mount
	Channels int

	// MaxVolume is the tip capacity in microliters.
	MaxVolume float64
	TipRacks  int
}

func (p Pipette) String() string { return p.Name + " on " + p.Mount.String() }

// Observer is notified of consumables used by the machine.
type Observer interface {
	TipsUsed(p Pipette, n int)
	Aspirated(reagent string, vol float64)
	Rollover(reagent string, well int)
}

type Machine struct {
	Adapter

	Tips *TipTracker

	prompt    Prompter
	observers []Observer
	log       *zap.Logger
}

// NewMachine wraps a with tip tracking. Replacement prompts go to the
// adapter until SetPrompter is called.
func NewMachine(a Adapter, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		Adapter: a,
		Tips:    NewTipTracker(),
		prompt:  AdapterPrompter{Adapter: a},
		log:     log,
	}
}

func (m *Machine) SetPrompter(p Prompter) {
	if p == nil {
		p = AdapterPrompter{Adapter: m.Adapter}
	}
	m.prompt = p
}

func (m *Machine) Observe(o Observer) { m.observers = append(m.observers, o) }

func (m *Machine) Logger() *zap.Logger { return m.log }

// A Mounter is told which pipettes are installed.
type Mounter interface {
	Mount(p Pipette)
}

// Load registers a pipette with the tip tracker, and with the adapter
// when it is a Mounter.
func (m *Machine) Load(p Pipette) Pipette {
	m.Tips.Register(p)
	if mt, ok := m.Adapter.(Mounter); ok {
		mt.Mount(p)
	}
	return p
}

// Height computes the pickup height for a draw from r and reports
// rollovers to observers.
func (m *Machine) Height(r *reagent.Reagent, area, vol float64, opt reagent.HeightOptions) (reagent.Pickup, error) {
	p, err := r.Height(area, vol, opt)
	if err != nil {
		return p, err
	}
	if p.Rollover {
		m.log.Info("next reservoir well", zap.String("reagent", r.Name), zap.Int("well", p.Well))
		m.Comment(fmt.Sprintf("Next column should be picked: %s well %d", r.Name, p.Well+1))
		for _, o := range m.observers {
			o.Rollover(r.Name, p.Well)
		}
	}
	return p, nil
}

// hold blocks on the prompter until the operator resumes.
func (m *Machine) hold(ctx context.Context, message string) error {
	m.log.Info("hold", zap.String("message", message))
	return m.prompt.Prompt(ctx, message)
}

func (m *Machine) aspirated(r *reagent.Reagent, vol float64) {
	if r == nil {
		return
	}
	for _, o := range m.observers {
		o.Aspirated(r.Name, vol)
	}
}
