package sim

import (
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/command"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
)

// Well returns the ledger of a well by its deck ID.
func (s *Simulator) Well(id string) Ledger {
	s.mx.Lock()
	defer s.mx.Unlock()
	if l, ok := s.wells[id]; ok {
		return *l
	}
	return Ledger{}
}

// Wells returns a copy of every ledger.
func (s *Simulator) Wells() map[string]Ledger {
	s.mx.Lock()
	defer s.mx.Unlock()
	res := make(map[string]Ledger, len(s.wells))
	for k, v := range s.wells {
		res[k] = *v
	}
	return res
}

// Commands returns everything the simulator was asked to do.
func (s *Simulator) Commands() []command.Command {
	s.mx.Lock()
	defer s.mx.Unlock()
	c := make([]command.Command, len(s.cmds))
	copy(c, s.cmds)
	return c
}

// Count returns how many commands of op were run.
func (s *Simulator) Count(op command.Op) (n int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	for _, c := range s.cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Elapsed is the total time spent in delays.
func (s *Simulator) Elapsed() time.Duration {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.clock
}

// Magnet reports whether the magnet is engaged and at which height.
func (s *Simulator) Magnet() (bool, float64) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.engage, s.magnet
}

func (s *Simulator) Temperature() float64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.temp
}

// TipContents returns the volume held in the tip on m.
func (s *Simulator) TipContents(m machine.Mount) float64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	if t, ok := s.tips[m]; ok {
		return t.contents
	}
	return 0
}

// TipsPicked returns how many tips were picked up and discarded on m.
func (s *Simulator) TipsPicked(m machine.Mount) (picked, discarded int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if t, ok := s.tips[m]; ok {
		return t.picked, t.discarded
	}
	return 0, 0
}
