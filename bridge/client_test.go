package bridge

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoServer answers every frame with "ok" and closes the first
// connection after closeAfter frames when closeAfter > 0.
func echoServer(t *testing.T, closeAfter int) (*httptest.Server, *int32) {
	var conns int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := up.Upgrade(w, req, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer ws.Close()
		n := atomic.AddInt32(&conns, 1)
		var frames int
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			frames++
			err = ws.WriteMessage(websocket.TextMessage, []byte("ok "+string(data)))
			if err != nil {
				return
			}
			if n == 1 && closeAfter > 0 && frames == closeAfter {
				return
			}
		}
	}))
	return srv, &conns
}

func TestClient(t *testing.T) {
	srv, _ := echoServer(t, 0)

	c := Dial(wsURL(srv), nil)
	r := bufio.NewReader(c)

	_, err := c.Write([]byte("HOME\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ok HOME\n", line)

	require.NoError(t, c.Close())
	_, err = c.Write([]byte("HOME\n"))
	assert.Error(t, err)

	srv.Close()
	goleak.VerifyNone(t)
}

func TestClient_Reconnect(t *testing.T) {
	srv, conns := echoServer(t, 1)

	c := DialOptions(wsURL(srv), nil, Options{Retry: 10 * time.Millisecond})
	r := bufio.NewReader(c)

	send := func(cmd string) {
		t.Helper()
		_, err := c.Write([]byte(cmd + "\n"))
		require.NoError(t, err)
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "ok "+cmd+"\n", line)
	}

	send("MAGON H14")
	require.Eventually(t, func() bool { return atomic.LoadInt32(conns) == 2 }, time.Second, 5*time.Millisecond)
	send("MAGOFF")

	require.NoError(t, c.Close())
	srv.Close()
	goleak.VerifyNone(t)
}
