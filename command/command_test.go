package command

import (
	"io"
	"testing"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	c := New(Aspirate, Word{W: 'M', Arg: 0}, Word{W: 'V', Arg: 10}, Word{W: 'R', Arg: 1}).
		At(coord.Point{X: 1, Y: 2, Z: 3}).
		WithMsg("2:A1")
	assert.Equal(t, "ASPIRATE M0 V10 R1 X1 Y2 Z3 ;2:A1", c.String())

	assert.Equal(t, "DISPENSE V137.8", New(Dispense, Word{W: 'V', Arg: 137.8}).String())
	assert.Equal(t, "MOVE Z-0.5", New(Move, Word{W: 'Z', Arg: -0.5}).String())
	assert.Equal(t, "HOME", New(Home).String())
}

func TestParse(t *testing.T) {
	cmds, err := Parse("ASPIRATE M0 V10 R1 X1 Y2 Z3 ;2:A1\n\nmagon h14\n; Step 2: Transfer lysis\nDELAY P2.5")
	require.NoError(t, err)
	require.Len(t, cmds, 4)

	assert.Equal(t, Aspirate, cmds[0].Op)
	assert.Equal(t, "2:A1", cmds[0].Msg)
	ok, v := cmds[0].Arg('V')
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	p, ok := cmds[0].Point()
	assert.True(t, ok)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, p)

	assert.Equal(t, Command{Op: EngageMagnet, Words: []Word{{W: 'H', Arg: 14}}}, cmds[1])
	assert.Equal(t, Command{Op: Comment, Msg: "Step 2: Transfer lysis"}, cmds[2])
	assert.Equal(t, Command{Op: Delay, Words: []Word{{W: 'P', Arg: 2.5}}}, cmds[3])

	_, err = Parse("ASPIRATE V")
	assert.Error(t, err)
	_, err = Parse("1ASPIRATE")
	assert.Error(t, err)

	assert.Panics(t, func() { MustParse("X") })
}

func TestCommand_Validate(t *testing.T) {
	assert.NoError(t, MustParse("ASPIRATE M0 V10 R1 X1 Y2 Z3")[0].Validate())
	assert.Error(t, MustParse("ASPIRATE M0 M1")[0].Validate())
	assert.Error(t, MustParse("MAGON V10")[0].Validate())
	assert.Error(t, MustParse("SPIN S100")[0].Validate())
}

func TestCommandsReader(t *testing.T) {
	cmds := []Command{New(Home), New(PickUpTip, Word{W: 'M', Arg: 1})}

	r := &CommandsReader{Commands: cmds}

	c, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, New(Home), c)

	c, err = r.Read()
	assert.NoError(t, err)
	assert.Equal(t, New(PickUpTip, Word{W: 'M', Arg: 1}), c)

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestBuffer_Read(t *testing.T) {
	cmds := []Command{New(Home), New(PickUpTip, Word{W: 'M', Arg: 1})}

	b := NewBuffer(&CommandsReader{Commands: cmds})

	buf := make([]byte, 32)
	n, err := b.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "HOME\nPICKUP M1\n", string(buf[:n]))

	n, err = b.Read(buf)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}
