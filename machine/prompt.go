package machine

import (
	"context"
	"errors"
	"sync"
)

// A Prompter blocks until the operator acknowledges msg.
type Prompter interface {
	Prompt(ctx context.Context, msg string) error
}

// AdapterPrompter pauses the robot itself.
type AdapterPrompter struct {
	Adapter Adapter
}

func (a AdapterPrompter) Prompt(ctx context.Context, msg string) error {
	return a.Adapter.Pause(ctx, msg)
}

// ErrNotHolding is returned by Resume when nothing is waiting.
var ErrNotHolding = errors.New("not holding")

// HoldPrompter publishes hold messages on a channel and blocks until
// Resume is called.
type HoldPrompter struct {
	holdMessage chan string

	mx     sync.Mutex
	resume chan struct{}
}

func NewHoldPrompter() *HoldPrompter {
	return &HoldPrompter{holdMessage: make(chan string, 1)}
}

// HoldMessage delivers the message of each hold and "-" when it ends.
func (h *HoldPrompter) HoldMessage() chan string { return h.holdMessage }

func (h *HoldPrompter) send(msg string) {
	select {
	case h.holdMessage <- msg:
	default:
		// drop the stale message so the latest one is seen
		select {
		case <-h.holdMessage:
		default:
		}
		select {
		case h.holdMessage <- msg:
		default:
		}
	}
}

func (h *HoldPrompter) Prompt(ctx context.Context, msg string) error {
	ch := make(chan struct{})
	h.mx.Lock()
	h.resume = ch
	h.mx.Unlock()

	h.send(msg)
	defer h.send("-")

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		h.mx.Lock()
		if h.resume == ch {
			h.resume = nil
		}
		h.mx.Unlock()
		return ctx.Err()
	}
}

// Resume releases the pending hold.
func (h *HoldPrompter) Resume() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.resume == nil {
		return ErrNotHolding
	}
	close(h.resume)
	h.resume = nil
	return nil
}

// Holding reports whether a prompt is waiting.
func (h *HoldPrompter) Holding() bool {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.resume != nil
}
