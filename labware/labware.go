package labware

import (
	"strconv"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
)

// Labware is a definition placed in a deck slot.
type Labware struct {
	Def   Definition
	Slot  string
	Label string

	rows [][]Well
}

func newLabware(def Definition, slot, label string, base coord.Point, z level.ZOffsetter) *Labware {
	if label == "" {
		label = def.Name
	}
	l := &Labware{Def: def, Slot: slot, Label: label}
	l.rows = make([][]Well, def.Rows)
	for r := range l.rows {
		l.rows[r] = make([]Well, def.Cols)
		for c := range l.rows[r] {
			center := base.Add(coord.Point{
				X: def.OffsetX + float64(c)*def.PitchX,
				Y: def.OffsetY - float64(r)*def.PitchY,
				Z: def.BottomZ,
			})
			if ok, dz := z.OffsetZ(center.X, center.Y); ok {
				center.Z += dz
			}
			l.rows[r][c] = Well{
				Name:    wellName(r, c),
				Slot:    slot,
				Labware: label,
				Center:  center,
				Depth:   def.Depth,
				Volume:  def.Volume,
			}
		}
	}
	return l
}

func wellName(row, col int) string {
	return string(rune('A'+row)) + strconv.Itoa(col+1)
}

// Rows returns wells grouped by row, A first.
func (l *Labware) Rows() [][]Well { return l.rows }

// Row returns the wells of one row.
func (l *Labware) Row(i int) []Well { return l.rows[i] }

// Columns returns wells grouped by column.
func (l *Labware) Columns() [][]Well {
	cols := make([][]Well, l.Def.Cols)
	for c := range cols {
		cols[c] = make([]Well, l.Def.Rows)
		for r := range l.rows {
			cols[c][r] = l.rows[r][c]
		}
	}
	return cols
}

// Wells returns every well in column order (A1, B1, ... A2, B2, ...).
func (l *Labware) Wells() []Well {
	res := make([]Well, 0, l.Def.Rows*l.Def.Cols)
	for c := 0; c < l.Def.Cols; c++ {
		for r := 0; r < l.Def.Rows; r++ {
			res = append(res, l.rows[r][c])
		}
	}
	return res
}

// Well finds a well by name.
func (l *Labware) Well(name string) (Well, bool) {
	for _, row := range l.rows {
		for _, w := range row {
			if w.Name == name {
				return w, true
			}
		}
	}
	return Well{}, false
}
