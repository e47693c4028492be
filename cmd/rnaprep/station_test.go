package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/COVIDWarriors/CWarriors-Covid19/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelWells(t *testing.T) {
	st, err := buildStation(config.Default(), machine.NewMachine(sim.New(nil), nil), labware.NewDeck(nil))
	require.NoError(t, err)

	var names []string
	for _, w := range levelWells(levelPlate(st)) {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"A1", "A12", "E7", "H1", "H12"}, names)
}

func TestLoadDeck_Flat(t *testing.T) {
	deck, err := loadDeck(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, deck)
}

func TestWritePlan(t *testing.T) {
	for _, id := range []string{"B", "C"} {
		t.Run(id, func(t *testing.T) {
			cfg := config.Default()
			cfg.Station = id
			st, err := buildStation(cfg, machine.NewMachine(sim.New(nil), nil), labware.NewDeck(nil))
			require.NoError(t, err)

			var buf bytes.Buffer
			writePlan(&buf, st)
			writeSteps(&buf, st.Steps())
			out := buf.String()
			assert.Contains(t, out, "Step 2 ")
			assert.Contains(t, out, "STEP")
		})
	}
}

func TestWriteTimeLog(t *testing.T) {
	dir := t.TempDir()
	rec := runlog.NewRun("B", 8, time.Date(2020, 4, 1, 10, 0, 0, 0, time.UTC))
	res := []protocol.Result{{ID: 1, Description: "Mix beads"}}
	require.NoError(t, writeTimeLog(dir, rec, res))

	data, err := ioutil.ReadFile(filepath.Join(dir, "time_log_station_B_20200401_100000.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), runlog.TSVHeader+"\n"))
	assert.FileExists(t, filepath.Join(dir, "time_log_station_B_20200401_100000.json"))

	assert.NoError(t, writeTimeLog("", rec, res))
}
