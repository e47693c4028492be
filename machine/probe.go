package machine

import (
	"context"
	"errors"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
	"go.uber.org/zap"
)

var ErrNoProbe = errors.New("adapter cannot probe")

// ProbeOptions configure a deck leveling run.
type ProbeOptions struct {
	Pipette Pipette

	// If true, hold for the operator to attach the probe first.
	Wait bool
}

// ProbeWells touches off the bottom of each well and returns a leveling
// mesh of the measured deviation from nominal. The wells should come from
// the same piece of labware so they share a nominal bottom height.
func (m *Machine) ProbeWells(ctx context.Context, wells []labware.Well, opt ProbeOptions) (*level.Mesh, error) {
	prober, ok := m.Adapter.(Prober)
	if !ok {
		return nil, ErrNoProbe
	}
	if len(wells) < 3 {
		return nil, errors.New("need at least 3 wells to level")
	}
	if opt.Wait {
		err := m.hold(ctx, "Attach probe to "+opt.Pipette.Mount.String()+" mount.")
		if err != nil {
			return nil, err
		}
	}

	points := make([]coord.Point, 0, len(wells))
	for _, w := range wells {
		p, err := prober.ProbeZ(ctx, opt.Pipette.Mount, w.Bottom(0))
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", w, err)
		}
		m.log.Debug("probe", zap.String("well", w.ID()), zap.Float64("z", p.Z))
		points = append(points, coord.Point{X: w.Center.X, Y: w.Center.Y, Z: p.Z})
	}

	return level.NewMesh(level.Relative(wells[0].Center.Z, points))
}
