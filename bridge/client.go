// Package bridge carries the robot line protocol over a websocket to a
// serial bridge on the network.
package bridge

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is a reconnecting websocket link. Each Write is sent as one text
// frame and each received frame is read back as a newline terminated line.
type Client struct {
	url   string
	log   *zap.Logger
	retry time.Duration

	outgoing chan message
	incoming chan []byte

	rMx     sync.Mutex
	pending []byte

	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

var _ io.ReadWriteCloser = &Client{}

type message struct {
	done    chan struct{}
	payload []byte
}

// Options configures a Client.
type Options struct {
	// Retry is the delay between connection attempts.
	Retry time.Duration
}

// Dial starts connecting to url in the background. Writes block until the
// link is up.
func Dial(url string, log *zap.Logger) *Client {
	return DialOptions(url, log, Options{})
}

func DialOptions(url string, log *zap.Logger, opt Options) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Retry == 0 {
		opt.Retry = 3 * time.Second
	}
	c := &Client{
		url:      url,
		log:      log.With(zap.String("url", url)),
		retry:    opt.Retry,
		outgoing: make(chan message),
		incoming: make(chan []byte, 1000),
		closeCh:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.log.Error("read", zap.Error(err))
			}
			return
		}
		if !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data, '\n')
		}
		select {
		case c.incoming <- data:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) sleep() bool {
	t := time.NewTimer(c.retry)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.closeCh:
		return false
	}
}

func (c *Client) loop() {
	defer c.wg.Done()
	defer close(c.incoming)
	var nextUp message

reconnect:
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.log.Info("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Error("connect", zap.Error(err))
			if !c.sleep() {
				return
			}
			continue
		}
		c.log.Info("connected")
		done := make(chan struct{})
		go c.readLoop(ws, done)

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					c.log.Error("send", zap.Error(err))
					ws.Close()
					<-done
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-done:
				ws.Close()
				continue reconnect
			case <-c.closeCh:
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				ws.Close()
				<-done
				return
			case nextUp = <-c.outgoing:
			}
		}
	}
}

// Write sends p as a single frame once connected.
func (c *Client) Write(p []byte) (int, error) {
	msg := message{done: make(chan struct{}), payload: bytes.TrimSuffix(append([]byte(nil), p...), []byte("\n"))}
	select {
	case c.outgoing <- msg:
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	}
	select {
	case <-msg.done:
		return len(p), nil
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	}
}

func (c *Client) Read(p []byte) (int, error) {
	c.rMx.Lock()
	defer c.rMx.Unlock()
	if len(c.pending) == 0 {
		data, ok := <-c.incoming
		if !ok {
			return 0, io.EOF
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Close drops the link and stops reconnecting.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	c.wg.Wait()
	return nil
}
