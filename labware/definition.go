package labware

import (
	"fmt"
	"sort"
	"sync"
)

// Definition describes a labware grid. Offsets are from the front-left
// corner of the slot footprint to the center of well A1.
type Definition struct {
	Name string

	Rows, Cols     int
	OffsetX        float64
	OffsetY        float64
	PitchX, PitchY float64

	// BottomZ is the height of the well bottoms above the labware base.
	BottomZ float64
	Depth   float64
	Volume  float64
}

func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("labware definition: missing name")
	}
	if d.Rows < 1 || d.Rows > 26 || d.Cols < 1 {
		return fmt.Errorf("labware definition %s: invalid grid %dx%d", d.Name, d.Rows, d.Cols)
	}
	if d.Depth <= 0 {
		return fmt.Errorf("labware definition %s: depth must be positive", d.Name)
	}
	return nil
}

var (
	defMx sync.RWMutex
	defs  = map[string]Definition{}
)

// Register adds or replaces a definition.
func Register(d Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	defMx.Lock()
	defs[d.Name] = d
	defMx.Unlock()
	return nil
}

// Lookup returns a registered definition.
func Lookup(name string) (Definition, bool) {
	defMx.RLock()
	d, ok := defs[name]
	defMx.RUnlock()
	return d, ok
}

// Names lists registered definitions.
func Names() []string {
	defMx.RLock()
	defer defMx.RUnlock()
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// nominal geometry of the labware the stations use
var builtin = []Definition{
	{Name: "nest_12_reservoir_15ml", Rows: 1, Cols: 12, OffsetX: 14.38, OffsetY: 42.78, PitchX: 9.0, BottomZ: 4.55, Depth: 26.85, Volume: 15000},
	{Name: "nest_1_reservoir_195ml", Rows: 1, Cols: 1, OffsetX: 63.88, OffsetY: 42.74, BottomZ: 6.0, Depth: 25.0, Volume: 195000},
	{Name: "nest_96_wellplate_2000ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 3.0, Depth: 38.0, Volume: 2000},
	{Name: "biorad_96_alum", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 5.1, Depth: 14.81, Volume: 200},
	{Name: "opentrons_24_aluminumblock_generic_2ml_screwcap", Rows: 4, Cols: 6, OffsetX: 20.75, OffsetY: 68.63, PitchX: 17.25, PitchY: 17.25, BottomZ: 6.7, Depth: 42.0, Volume: 2000},
	{Name: "kingfisher_std_96_wellplate_550ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 2.0, Depth: 20.0, Volume: 550},
	{Name: "abi_fast_qpcr_96_alum_opentrons_100ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 5.0, Depth: 16.0, Volume: 100},
	{Name: "opentrons_96_tiprack_300ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 0, Depth: 59.3, Volume: 300},
	{Name: "opentrons_96_filtertiprack_200ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 0, Depth: 59.3, Volume: 200},
	{Name: "opentrons_96_filtertiprack_20ul", Rows: 8, Cols: 12, OffsetX: 14.38, OffsetY: 74.24, PitchX: 9, PitchY: 9, BottomZ: 0, Depth: 39.2, Volume: 20},
}

func init() {
	for _, d := range builtin {
		if err := Register(d); err != nil {
			panic(err)
		}
	}
}
