package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/debug"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    []debug.ClientID
	disconnected []debug.ClientID
	messages     []string
}

func (h *recordingHandler) OnConnect(c debug.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, c)
}

func (h *recordingHandler) OnDisconnect(c debug.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, c)
}

func (h *recordingHandler) HandleMessage(_ debug.ClientID, raw []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(raw))
	return nil
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected), len(h.disconnected), len(h.messages)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubLifecycle(t *testing.T) {
	t.Parallel()
	handler := &recordingHandler{}
	hub := NewHub()
	hub.SetHandler(handler)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.Eventually(t, func() bool {
		_, _, m := handler.counts()
		return m == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast([]byte(`{"type":"names"}`))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"names"}`, string(msg))

	handler.mu.Lock()
	id := handler.connected[0]
	handler.mu.Unlock()
	hub.Send(id, []byte(`{"type":"result"}`))
	hub.Send("unknown", []byte(`{"type":"result"}`))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"result"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, d, _ := handler.counts()
		return d == 1 && hub.ClientCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHubDrivesDebugServer(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	server := debug.NewServer(nil, hub)
	hub.SetHandler(server)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	z := ai.NewZone("ws-zone")
	t.Cleanup(z.Shutdown)
	server.AddZone(z)
	server.Update(0)

	conn := dial(t, srv)
	msgs := make(chan []byte, 8)
	go func() {
		defer close(msgs)
		for {
			_, m, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- m
		}
	}()
	// The connect event is only handled by an update.
	require.Eventually(t, func() bool {
		server.Update(0)
		return len(msgs) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.JSONEq(t, `{"type":"pause","success":true,"pause":false}`, string(<-msgs))
	require.JSONEq(t, `{"type":"names","success":true,"names":["ws-zone"]}`, string(<-msgs))
}

func TestIsLoopbackRemote(t *testing.T) {
	t.Parallel()
	require.True(t, isLoopbackRemote("127.0.0.1:1234"))
	require.True(t, isLoopbackRemote("[::1]:80"))
	require.False(t, isLoopbackRemote("10.0.0.2:80"))
	require.False(t, isLoopbackRemote("garbage"))
}
