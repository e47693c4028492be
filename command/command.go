// Package command encodes the line protocol spoken to liquid handlers.
//
// Each line is an operation name followed by lettered arguments and an
// optional message after a semicolon:
//
//	ASPIRATE M0 V10 R1 X1 Y2 Z3 ;2:A1
//
// The device answers every line with "ok" or "error:<reason>".
package command

import (
	"errors"
	"strings"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
)

// Op is the operation of a command.
type Op string

const (
	Aspirate        Op = "ASPIRATE"
	Dispense        Op = "DISPENSE"
	AirGap          Op = "AIRGAP"
	BlowOut         Op = "BLOWOUT"
	TouchTip        Op = "TOUCHTIP"
	Move            Op = "MOVE"
	PickUpTip       Op = "PICKUP"
	DropTip         Op = "DROP"
	ReturnTip       Op = "RETURN"
	ResetTipracks   Op = "RESETTIPS"
	EngageMagnet    Op = "MAGON"
	DisengageMagnet Op = "MAGOFF"
	SetTemperature  Op = "TEMP"
	Delay           Op = "DELAY"
	Pause           Op = "PAUSE"
	Comment         Op = "COMMENT"
	Home            Op = "HOME"
	Probe           Op = "PROBE"
)

var ops = map[Op]string{
	Aspirate:        "MVRXYZ",
	Dispense:        "MVRXYZ",
	AirGap:          "MV",
	BlowOut:         "MXYZ",
	TouchTip:        "MSXYZ",
	Move:            "MXYZ",
	PickUpTip:       "M",
	DropTip:         "M",
	ReturnTip:       "M",
	ResetTipracks:   "M",
	EngageMagnet:    "H",
	DisengageMagnet: "",
	SetTemperature:  "C",
	Delay:           "P",
	Pause:           "",
	Comment:         "",
	Home:            "",
	Probe:           "MXYZ",
}

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	_, ok := ops[op]
	return ok
}

// Command is one line of the protocol.
type Command struct {
	Op    Op
	Words []Word
	Msg   string
}

// New builds a command from op and words.
func New(op Op, words ...Word) Command {
	return Command{Op: op, Words: words}
}

// At appends the axis words of p.
func (c Command) At(p coord.Point) Command {
	c.Words = append(c.Clone().Words, Word{W: 'X', Arg: p.X}, Word{W: 'Y', Arg: p.Y}, Word{W: 'Z', Arg: p.Z})
	return c
}

// WithMsg sets the trailing message.
func (c Command) WithMsg(msg string) Command {
	c.Msg = msg
	return c
}

func (c Command) Arg(w byte) (bool, float64) {
	for _, g := range c.Words {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}

func (c Command) SetArg(w byte, val float64) {
	for i, g := range c.Words {
		if g.W == w {
			c.Words[i].Arg = val
			return
		}
	}
}

// Point returns the axis words as a point.
func (c Command) Point() (p coord.Point, ok bool) {
	var hx, hy, hz bool
	hx, p.X = c.Arg('X')
	hy, p.Y = c.Arg('Y')
	hz, p.Z = c.Arg('Z')
	return p, hx && hy && hz
}

func (c Command) Clone() Command {
	w := make([]Word, len(c.Words))
	copy(w, c.Words)
	c.Words = w
	return c
}

func (c Command) String() string {
	var b strings.Builder
	b.WriteString(string(c.Op))
	for _, w := range c.Words {
		b.WriteByte(' ')
		b.WriteString(w.String())
	}
	if c.Msg != "" {
		b.WriteString(" ;")
		b.WriteString(strings.ReplaceAll(c.Msg, "\n", " "))
	}
	return b.String()
}

// Validate checks the operation is known and each word is allowed for it
// and appears at most once.
func (c Command) Validate() error {
	allowed, ok := ops[c.Op]
	if !ok {
		return errors.New("unknown operation: " + string(c.Op))
	}
	var checkWord [256]bool
	for _, g := range c.Words {
		if !g.IsValid() {
			return errors.New("invalid word in command")
		}
		if checkWord[g.W] {
			return errors.New("word was repeated in a command")
		}
		checkWord[g.W] = true
		if !strings.ContainsRune(allowed, rune(g.W)) {
			return errors.New("word " + string(g.W) + " not allowed for " + string(c.Op))
		}
	}
	return nil
}
