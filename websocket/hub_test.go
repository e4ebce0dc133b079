package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFeedServer upgrades every request and registers it for the session in the query
func newFeedServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.RegisterClient(conn, r.URL.Query().Get("user"), r.URL.Query().Get("session"))
		go client.WritePump()
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user + "&session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var control controlMessage
	require.NoError(t, conn.ReadJSON(&control))
	require.Equal(t, "subscribed", control.Type)
	require.Equal(t, session, control.SessionID)
	return conn
}

func TestHub_PublishReachesOnlySessionWatchers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	srv := newFeedServer(t, hub)

	watcherA := dial(t, srv, "user-1", "session-a")
	watcherB := dial(t, srv, "user-2", "session-b")
	require.Eventually(t, func() bool { return hub.Watchers("session-a") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("session-a", []byte(`{"type":"session.updated","session_id":"session-a"}`))

	var update map[string]string
	require.NoError(t, watcherA.ReadJSON(&update))
	assert.Equal(t, "session-a", update["session_id"])

	watcherB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := watcherB.ReadMessage()
	assert.Error(t, err)
}

func TestHub_PingIsAnsweredToSenderOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	srv := newFeedServer(t, hub)

	pinger := dial(t, srv, "user-1", "session-a")
	other := dial(t, srv, "user-1", "session-a")

	require.NoError(t, pinger.WriteJSON(Message{Type: "ping"}))
	var control controlMessage
	require.NoError(t, pinger.ReadJSON(&control))
	assert.Equal(t, "pong", control.Type)

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	srv := newFeedServer(t, hub)

	conn := dial(t, srv, "user-1", "session-a")
	require.Eventually(t, func() bool { return hub.Watchers("session-a") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Watchers("session-a") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutWatchersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("nobody", []byte("{}"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
}
