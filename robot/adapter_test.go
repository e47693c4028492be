package robot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestAdapter(t *testing.T, respond func(string) []string) (*Adapter, *fakeDevice) {
	t.Helper()
	dev, conn := newFakeDevice(t, respond)
	a := NewAdapter(conn, nil)
	t.Cleanup(func() {
		a.Close()
		dev.Close()
		goleak.VerifyNone(t)
	})
	return a, dev
}

func TestAdapter_Commands(t *testing.T) {
	a, dev := newTestAdapter(t, nil)
	ctx := context.Background()

	loc := labware.Location{Well: "2:A1", Point: coord.Point{X: 1, Y: 2, Z: 3}}
	require.NoError(t, a.Aspirate(ctx, machine.Left, 10, loc, 1))
	require.NoError(t, a.AirGap(ctx, machine.Right, 5))
	require.NoError(t, a.EngageMagnet(ctx, 14))
	require.NoError(t, a.Delay(ctx, 2500*time.Millisecond, "settle"))
	a.Comment("Step 1")

	expected := []string{
		"ASPIRATE M0 V10 R1 X1 Y2 Z3 ;2:A1",
		"AIRGAP M1 V5",
		"MAGON H14",
		"DELAY P2.5 ;settle",
		"COMMENT ;Step 1",
	}
	for _, e := range expected {
		select {
		case l := <-dev.lines:
			assert.Equal(t, e, l)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", e)
		}
	}
}

func TestAdapter_DeviceError(t *testing.T) {
	a, _ := newTestAdapter(t, func(line string) []string {
		if strings.HasPrefix(line, "DROP") {
			return []string{"error:no tip attached"}
		}
		return []string{"ok"}
	})
	ctx := context.Background()

	err := a.DropTip(ctx, machine.Left)
	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "no tip attached", de.Reason)

	assert.NoError(t, a.PickUpTip(ctx, machine.Left))
}

func TestAdapter_Reset(t *testing.T) {
	a, _ := newTestAdapter(t, func(line string) []string {
		if strings.HasPrefix(line, "HOME") {
			return []string{"LH 1.0 ['?' for status]"}
		}
		return []string{"ok"}
	})
	ctx := context.Background()

	assert.ErrorIs(t, a.Home(ctx), ErrReset)
	assert.NoError(t, a.DisengageMagnet(ctx))
}

func TestAdapter_HasTip(t *testing.T) {
	a, dev := newTestAdapter(t, nil)
	dev.status.Store("<Idle|Tip:0,1|Mag:1|Temp:4>")
	ctx := context.Background()

	ok, err := a.HasTip(ctx, machine.Right)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.HasTip(ctx, machine.Left)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, Status{State: "Idle", Tips: [2]bool{false, true}, Magnet: true, Temp: 4}, a.CurrentState())

	_, err = a.HasTip(ctx, machine.Mount(3))
	assert.Error(t, err)
}

func TestAdapter_ProbeZ(t *testing.T) {
	a, _ := newTestAdapter(t, func(line string) []string {
		if strings.HasPrefix(line, "PROBE") {
			return []string{"[PRB:1.000,2.000,2.600:1]", "ok"}
		}
		return []string{"ok"}
	})

	p, err := a.ProbeZ(context.Background(), machine.Left, labware.Location{Well: "1:A1", Point: coord.Point{X: 1, Y: 2, Z: 3}})
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 2.6}, p)
}

func TestAdapter_ProbeNoContact(t *testing.T) {
	a, _ := newTestAdapter(t, func(line string) []string {
		if strings.HasPrefix(line, "PROBE") {
			return []string{"[PRB:1.000,2.000,0.000:0]", "ok"}
		}
		return []string{"ok"}
	})

	_, err := a.ProbeZ(context.Background(), machine.Left, labware.Location{Point: coord.Point{X: 1, Y: 2, Z: 3}})
	assert.Error(t, err)
}

func TestAdapter_Canceled(t *testing.T) {
	a, _ := newTestAdapter(t, func(line string) []string {
		if strings.HasPrefix(line, "PAUSE") {
			return nil
		}
		return []string{"ok"}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, a.Pause(ctx, "Replace tips"), context.DeadlineExceeded)
}
