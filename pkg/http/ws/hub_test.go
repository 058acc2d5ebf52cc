package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer registers every connection under ?session= and echoes messages
// back through the hub.
func echoServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConnection(c, zerolog.Nop())
		hub.Register(id, conn)
		go conn.WritePump()
		conn.ReadPump(func(msg Message) error { return hub.Send(id, msg) })
		hub.Unregister(id, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func roundTrip(t *testing.T, c *websocket.Conn, requestID string) {
	t.Helper()
	require.NoError(t, c.WriteJSON(Message{Type: TypePing, RequestID: requestID}))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Message
	require.NoError(t, c.ReadJSON(&got))
	assert.Equal(t, requestID, got.RequestID)
}

func TestHubReplacesSessionConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := echoServer(t, hub)

	first := dial(t, srv, "s1")
	roundTrip(t, first, "a")
	assert.Equal(t, 1, hub.Count())

	second := dial(t, srv, "s1")
	roundTrip(t, second, "b")
	assert.Equal(t, 1, hub.Count())

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "the replaced connection is closed")

	other := dial(t, srv, "s2")
	roundTrip(t, other, "c")
	assert.Equal(t, 2, hub.Count())
}

func TestHubSendAndClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := echoServer(t, hub)

	assert.ErrorIs(t, hub.Send("nobody", Message{Type: TypePong}), ErrConnectionNotFound)

	c := dial(t, srv, "s1")
	roundTrip(t, c, "a")

	hub.Close()
	assert.Zero(t, hub.Count())

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
}

func TestConnectionSendAfterClose(t *testing.T) {
	upgraded := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- NewConnection(c, zerolog.Nop())
	}))
	t.Cleanup(srv.Close)
	dial(t, srv, "x")

	conn := <-upgraded
	require.NoError(t, conn.Send(Message{Type: TypePong}))
	conn.Close()
	conn.Close()
	assert.ErrorIs(t, conn.Send(Message{Type: TypePong}), ErrConnectionClosed)
}
