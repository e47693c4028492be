// Package robot drives a liquid handler that speaks the command line
// protocol over a serial port or any other byte stream.
package robot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/COVIDWarriors/CWarriors-Covid19/command"
)

const bufferSize = 128

// ErrReset is returned from write methods if the device resets before all
// commands are run.
var ErrReset = errors.New("device reset")

// DeviceError is a command rejected by the device.
type DeviceError struct {
	Reason string
}

func (e *DeviceError) Error() string { return "device error: " + e.Reason }

// Conn tracks the device receive buffer so it is never overrun and
// matches each acknowledgement to the line that caused it.
type Conn struct {
	rw io.ReadWriter

	readBuf []byte
	scan    *bufio.Scanner
	ackCh   chan error
	resetCh chan struct{}
	closeCh chan struct{}
	once    sync.Once

	mx  sync.Mutex
	wMx sync.Mutex

	deviceBuf int
	lineSize  []int

	wroteLines int64
	readLines  int64
}

// NewConn creates a new Conn using the provided ReadWriter for data.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		scan:    bufio.NewScanner(rw),
		rw:      rw,
		ackCh:   make(chan error, bufferSize),
		resetCh: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// Close will abort any in-progress writes and close the
// underlying ReadWriter, if it implements io.Closer.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closeCh)
		if closer, ok := c.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

func (c *Conn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Conn) recordBufferSpace(n int) int64 {
	c.deviceBuf += n
	c.wroteLines++
	c.lineSize = append(c.lineSize, n)
	return c.wroteLines
}

func (c *Conn) waitForBufferSpace(ctx context.Context, n int) error {
	// an oversized line is sent alone into an empty buffer
	for c.deviceBuf > 0 && c.deviceBuf+n > bufferSize {
		err := c.next(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Conn) reset() error {
	c.deviceBuf = 0
	c.lineSize = nil
	c.readLines = c.wroteLines
	return ErrReset
}

func (c *Conn) next(ctx context.Context) error {
	if c.closed() {
		return io.ErrClosedPipe
	}

	select {
	case <-c.resetCh:
		return c.reset()
	default:
	}

	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	case <-c.resetCh:
		return c.reset()
	case e := <-c.ackCh:
		if len(c.lineSize) == 0 {
			// ack for a line written before a reset
			return nil
		}
		c.readLines++
		c.deviceBuf -= c.lineSize[0]
		c.lineSize = c.lineSize[1:]
		return e
	}
}

func (c *Conn) waitForLine(ctx context.Context, id int64) (err error) {
	for c.readLines < id {
		e := c.next(ctx)
		var de *DeviceError
		if e != nil && !errors.As(e, &de) {
			return e
		}
		if err == nil {
			err = e
		}
	}
	return err
}

// writeLine will block until line has been written to the device in full.
//
// It returns the line index.
func (c *Conn) writeLine(ctx context.Context, line []byte) (id int64, err error) {
	err = c.waitForBufferSpace(ctx, len(line))
	if err != nil {
		return 0, err
	}
	c.mx.Lock()
	_, err = c.rw.Write(line)
	c.mx.Unlock()
	if err != nil {
		return 0, err
	}
	id = c.recordBufferSpace(len(line))
	return id, nil
}

func splitLinesKeepN(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}

// Send writes every line of r and returns after all of them have been
// acknowledged. The first device error is returned once the rest are in.
func (c *Conn) Send(ctx context.Context, r io.Reader) (n int64, err error) {
	c.wMx.Lock()
	defer c.wMx.Unlock()
	if c.closed() {
		return 0, io.ErrClosedPipe
	}

	scanner := bufio.NewScanner(r)
	scanner.Split(splitLinesKeepN)

	lastID := c.wroteLines
	for scanner.Scan() {
		lastID, err = c.writeLine(ctx, scanner.Bytes())
		if err != nil {
			return n, err
		}
		n += int64(len(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}

	return n, c.waitForLine(ctx, lastID)
}

// ReadFrom returns after all lines have been sent and executed.
func (c *Conn) ReadFrom(r io.Reader) (int64, error) {
	return c.Send(context.Background(), r)
}

// Write will return after all lines have been sent and executed.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.ReadFrom(bytes.NewReader(p))
	return int(n), err
}

// Run sends commands and waits for them to complete.
func (c *Conn) Run(ctx context.Context, cmds ...command.Command) error {
	_, err := c.Send(ctx, command.NewBuffer(&command.CommandsReader{Commands: cmds}))
	return err
}

// WriteByte will write directly to the device without
// accounting for buffering.
//
// Use for realtime commands like `?`.
func (c *Conn) WriteByte(p byte) (err error) {
	if c.closed() {
		return io.ErrClosedPipe
	}
	c.mx.Lock()
	_, err = c.rw.Write([]byte{p})
	c.mx.Unlock()
	return err
}

// Read will read the next line from the device.
func (c *Conn) Read(p []byte) (n int, err error) {
	if c.closed() {
		return 0, io.ErrClosedPipe
	}

	if c.readBuf != nil {
		if len(p) < len(c.readBuf) {
			return 0, io.ErrShortBuffer
		}
		n = copy(p, c.readBuf)
		c.readBuf = nil
		return n, nil
	}
	if !c.scan.Scan() {
		err = c.scan.Err()
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	data := c.scan.Bytes()

	switch {
	case bytes.Equal(data, []byte("ok")):
		c.ack(nil)
	case bytes.HasPrefix(data, []byte("error:")):
		c.ack(&DeviceError{Reason: strings.TrimSpace(string(data[len("error:"):]))})
	case bytes.HasPrefix(data, []byte("LH ")):
		select {
		case c.resetCh <- struct{}{}:
		default:
		}
	}

	if len(p) < len(data) {
		c.readBuf = append([]byte(nil), data...)
		return 0, io.ErrShortBuffer
	}

	return copy(p, data), nil
}

func (c *Conn) ack(err error) {
	select {
	case c.ackCh <- err:
	case <-c.closeCh:
	}
}
