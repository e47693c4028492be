package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationb"
	"github.com/COVIDWarriors/CWarriors-Covid19/recipe/stationc"
	"github.com/COVIDWarriors/CWarriors-Covid19/sim"
	"github.com/spf13/cobra"
)

var simulate bool

// planCmd prints what a run would need without touching the robot
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show reagent volumes, transfer trips and the step table",
	Long: `Builds the station on a simulated robot and prints the reservoir volumes
to load, the trips of every liquid movement and the step table.

With --simulate the whole protocol runs on the simulator and the tip
summary and the virtual run time are printed too.`,
	RunE: planStation,
}

func init() {
	planCmd.Flags().BoolVar(&simulate, "simulate", false, "Run the protocol on the simulator")
}

func planStation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s := sim.New(logger)
	m := machine.NewMachine(s, logger)
	st, err := buildStation(cfg, m, labware.NewDeck(nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writePlan(out, st)
	fmt.Fprintln(out)
	writeSteps(out, st.Steps())

	if !simulate {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.Prepare(ctx); err != nil {
		return err
	}
	seq, err := protocol.NewSequencer(st.Steps(), logger)
	if err != nil {
		return err
	}
	if _, err := seq.Run(ctx); err != nil {
		return err
	}
	if err := st.Finish(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, l := range st.Summary() {
		fmt.Fprintln(out, l)
	}
	fmt.Fprintf(out, "Simulated run time: %s\n", s.Elapsed())
	return nil
}

func writePlan(out io.Writer, st station) {
	switch s := st.(type) {
	case *stationb.Station:
		for _, l := range s.Banner() {
			fmt.Fprintln(out, l)
		}
		fmt.Fprintln(out)
		for _, p := range s.Plans() {
			fmt.Fprintf(out, "Step %d %s: %d trips %.2f uL\n", p.Step, p.Reagent, len(p.Trips), p.Trips)
		}
	case *stationc.Station:
		mm := s.MasterMix()
		fmt.Fprintf(out, "MASTER MIX %s FOR %d SAMPLES: %.2f uL in %d tubes\n", mm.Name, s.Config().NumSamples, s.MMix.ReservoirVolume, mm.Wells)
		for i, w := range s.Components {
			fmt.Fprintf(out, "Component %d in %s: %.2f uL per sample\n", i+1, w, mm.Recipe[i])
		}
		fmt.Fprintln(out)
		for _, p := range s.Plans() {
			fmt.Fprintf(out, "Step %d %s: %d trips %.2f uL\n", p.Step, p.Reagent, len(p.Trips), p.Trips)
		}
	}
}

func writeSteps(out io.Writer, steps []protocol.Step) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\texecution\tdescription\twait_time")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%t\t%s\t%s\n", s.ID, s.Execute, s.Description, s.Wait)
	}
	tw.Flush()
}
