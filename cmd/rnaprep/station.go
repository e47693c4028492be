package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationb"
	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationc"
)

// A station is a recipe built on a machine and ready to run.
type station interface {
	Prepare(ctx context.Context) error
	Steps() []protocol.Step
	Finish(ctx context.Context) error
	Summary() []string
}

var (
	_ station = &stationb.Station{}
	_ station = &stationc.Station{}
)

func buildStation(cfg *config.Config, m *machine.Machine, deck *labware.Deck) (station, error) {
	switch cfg.Station {
	case "B":
		return stationb.BuildOn(m, deck, cfg.StationB)
	case "C":
		return stationc.BuildOn(m, deck, cfg.StationC)
	}
	return nil, fmt.Errorf("unknown station %q", cfg.Station)
}

func numSamples(cfg *config.Config) int {
	if cfg.Station == "C" {
		return cfg.StationC.NumSamples
	}
	return cfg.StationB.NumSamples
}

// levelPlate is the labware whose bottom matters most to a station.
func levelPlate(st station) *labware.Labware {
	switch s := st.(type) {
	case *stationb.Station:
		return s.Deepwell
	case *stationc.Station:
		return s.PCRPlate
	}
	return nil
}

// levelWells are the corners and the center of the plate.
func levelWells(l *labware.Labware) []labware.Well {
	rows := l.Rows()
	first, last := rows[0], rows[len(rows)-1]
	mid := rows[len(rows)/2]
	return []labware.Well{
		first[0],
		first[len(first)-1],
		mid[len(mid)/2],
		last[0],
		last[len(last)-1],
	}
}

const meshFile = "level.json"

// loadDeck returns a deck leveled by the mesh in dir, if one was probed.
func loadDeck(dir string) (*labware.Deck, error) {
	data, err := os.ReadFile(filepath.Join(dir, meshFile))
	if errors.Is(err, os.ErrNotExist) {
		return labware.NewDeck(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh: %w", err)
	}
	var points []coord.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse mesh: %w", err)
	}
	mesh, err := level.NewMesh(points)
	if err != nil {
		return nil, fmt.Errorf("failed to build mesh: %w", err)
	}
	return labware.NewDeck(mesh), nil
}

func saveMesh(dir string, mesh *level.Mesh) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(mesh.Points(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mesh: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, meshFile), data, 0644)
}
