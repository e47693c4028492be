package robot

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeDevice answers protocol lines on the far end of a pipe.
type fakeDevice struct {
	conn    net.Conn
	lines   chan string
	status  atomic.Value
	respond func(line string) []string

	wg sync.WaitGroup
}

func newFakeDevice(t *testing.T, respond func(line string) []string) (*fakeDevice, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	d := &fakeDevice{
		conn:    remote,
		lines:   make(chan string, 100),
		respond: respond,
	}
	d.status.Store("<Idle|Tip:0,0|Mag:0|Temp:25>")
	if d.respond == nil {
		d.respond = func(string) []string { return []string{"ok"} }
	}
	out := make(chan string, 100)
	d.wg.Add(2)
	go d.readLoop(out)
	go d.writeLoop(out)
	return d, local
}

func (d *fakeDevice) readLoop(out chan string) {
	defer d.wg.Done()
	defer close(out)
	r := bufio.NewReader(d.conn)
	var line strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '?':
			out <- d.status.Load().(string)
		case '\n':
			s := line.String()
			line.Reset()
			d.lines <- s
			for _, resp := range d.respond(s) {
				out <- resp
			}
		default:
			line.WriteByte(b)
		}
	}
}

func (d *fakeDevice) writeLoop(out chan string) {
	defer d.wg.Done()
	for s := range out {
		_, err := d.conn.Write([]byte(s + "\n"))
		if err != nil {
			// drain so readLoop never blocks
			for range out {
			}
			return
		}
	}
}

func (d *fakeDevice) Close() {
	d.conn.Close()
	d.wg.Wait()
}
