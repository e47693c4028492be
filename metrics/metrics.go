// Package metrics exports consumable and timing counters of protocol runs.
package metrics

import (
	"strconv"

	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rnaprep"

// Collector turns machine and step events into Prometheus metrics.
type Collector struct {
	tips       *prometheus.CounterVec
	aspirated  *prometheus.CounterVec
	rollovers  *prometheus.CounterVec
	stepLength *prometheus.HistogramVec
}

var (
	_ machine.Observer  = &Collector{}
	_ protocol.Observer = &Collector{}
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		tips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_used_total",
			Help:      "Tips discarded or returned, per mount.",
		}, []string{"mount"}),
		aspirated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volume_aspirated_ul_total",
			Help:      "Reagent volume drawn per channel, in microliters.",
		}, []string{"reagent"}),
		rollovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservoir_rollovers_total",
			Help:      "Moves to the next reservoir well.",
		}, []string{"reagent"}),
		stepLength: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of executed protocol steps.",
			Buckets:   []float64{1, 10, 60, 300, 600, 900, 1800, 3600},
		}, []string{"step"}),
	}
	for _, col := range []prometheus.Collector{c.tips, c.aspirated, c.rollovers, c.stepLength} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) TipsUsed(p machine.Pipette, n int) {
	c.tips.WithLabelValues(p.Mount.String()).Add(float64(n))
}

func (c *Collector) Aspirated(reagent string, vol float64) {
	if reagent == "" || vol <= 0 {
		return
	}
	c.aspirated.WithLabelValues(reagent).Add(vol)
}

func (c *Collector) Rollover(reagent string, well int) {
	c.rollovers.WithLabelValues(reagent).Inc()
}

func (c *Collector) StepStarted(s protocol.Step) {}

func (c *Collector) StepFinished(r protocol.Result) {
	c.stepLength.WithLabelValues(strconv.Itoa(r.ID)).Observe(r.Elapsed.Seconds())
}
