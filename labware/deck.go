package labware

import (
	"fmt"
	"strconv"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
)

// SlotCount is the number of deck slots.
const SlotCount = 11

const (
	slotPitchX = 132.5
	slotPitchY = 90.5
)

// ModuleKind names a deck module.
type ModuleKind string

const (
	MagneticModule    ModuleKind = "magdeck"
	TemperatureModule ModuleKind = "tempdeck"
)

var moduleHeight = map[ModuleKind]float64{
	MagneticModule:    32.0,
	TemperatureModule: 9.0,
}

// Module is a deck module that carries a single piece of labware.
type Module struct {
	Kind ModuleKind
	Slot string

	deck    *Deck
	labware *Labware
}

// Load places labware on top of the module.
func (m *Module) Load(name, label string) (*Labware, error) {
	if m.labware != nil {
		return nil, fmt.Errorf("%s in slot %s already carries %s", m.Kind, m.Slot, m.labware.Label)
	}
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown labware %q", name)
	}
	base, _ := SlotOrigin(m.Slot)
	base.Z += moduleHeight[m.Kind]
	m.labware = newLabware(def, m.Slot, label, base, m.deck.z)
	return m.labware, nil
}

// Labware returns the labware loaded on the module, if any.
func (m *Module) Labware() *Labware { return m.labware }

// Deck tracks what occupies each slot.
type Deck struct {
	z       level.ZOffsetter
	slots   map[string]*Labware
	modules map[string]*Module
}

// NewDeck creates an empty deck. A nil offsetter means a flat deck.
func NewDeck(z level.ZOffsetter) *Deck {
	if z == nil {
		z = level.Flat{}
	}
	return &Deck{
		z:       z,
		slots:   make(map[string]*Labware),
		modules: make(map[string]*Module),
	}
}

// SlotOrigin returns the front-left corner of a slot.
func SlotOrigin(slot string) (coord.Point, error) {
	n, err := strconv.Atoi(slot)
	if err != nil || n < 1 || n > SlotCount {
		return coord.Point{}, fmt.Errorf("invalid slot %q", slot)
	}
	n--
	return coord.Point{X: float64(n%3) * slotPitchX, Y: float64(n/3) * slotPitchY}, nil
}

func (d *Deck) claim(slot string) error {
	if _, err := SlotOrigin(slot); err != nil {
		return err
	}
	if l, ok := d.slots[slot]; ok {
		return fmt.Errorf("slot %s already holds %s", slot, l.Label)
	}
	if m, ok := d.modules[slot]; ok {
		return fmt.Errorf("slot %s already holds %s", slot, m.Kind)
	}
	return nil
}

// Load places labware directly in a slot.
func (d *Deck) Load(name, slot, label string) (*Labware, error) {
	if err := d.claim(slot); err != nil {
		return nil, err
	}
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown labware %q", name)
	}
	base, _ := SlotOrigin(slot)
	l := newLabware(def, slot, label, base, d.z)
	d.slots[slot] = l
	return l, nil
}

// LoadModule installs a module in a slot.
func (d *Deck) LoadModule(kind ModuleKind, slot string) (*Module, error) {
	if _, ok := moduleHeight[kind]; !ok {
		return nil, fmt.Errorf("unknown module %q", kind)
	}
	if err := d.claim(slot); err != nil {
		return nil, err
	}
	m := &Module{Kind: kind, Slot: slot, deck: d}
	d.modules[slot] = m
	return m, nil
}

// Slot returns the labware in a slot, including labware carried by a module.
func (d *Deck) Slot(slot string) (*Labware, bool) {
	if l, ok := d.slots[slot]; ok {
		return l, true
	}
	if m, ok := d.modules[slot]; ok && m.labware != nil {
		return m.labware, true
	}
	return nil, false
}
