package protocol

import (
	"fmt"
	"strings"
)

// Commenter receives operator-facing messages.
type Commenter interface {
	Comment(msg string)
}

// Banner writes step start and end markers to the robot log.
type Banner struct {
	Commenter Commenter

	// Tips, when set, is reported after each step.
	Tips func() int
}

var _ Observer = Banner{}

const rule = "###############################################"

func (b Banner) StepStarted(s Step) {
	b.Commenter.Comment(" ")
	b.Commenter.Comment(rule)
	b.Commenter.Comment(fmt.Sprintf("Step %d: %s", s.ID, s.Description))
	b.Commenter.Comment(rule)
	b.Commenter.Comment(" ")
}

func (b Banner) StepFinished(r Result) {
	b.Commenter.Comment(fmt.Sprintf("Step %d: %s took %s", r.ID, r.Description, r.Elapsed))
	if b.Tips != nil {
		b.Commenter.Comment(fmt.Sprintf("Used tips in total: %d", b.Tips()))
	}
}

// Section writes lines framed by rules.
func Section(c Commenter, lines ...string) {
	c.Comment(" ")
	c.Comment(rule)
	for _, l := range lines {
		c.Comment(strings.TrimRight(l, "\n"))
	}
	c.Comment(rule)
	c.Comment(" ")
}
