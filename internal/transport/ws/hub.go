// Package ws carries the debug protocol over websockets.
package ws

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vengi-voxel/vengi-sub015/internal/debug"
)

const (
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
	writeTimeout   = 5 * time.Second
)

// Handler receives the lifecycle and the inbound messages of every client.
// *debug.Server implements it.
type Handler interface {
	OnConnect(client debug.ClientID)
	OnDisconnect(client debug.ClientID)
	HandleMessage(client debug.ClientID, raw []byte) error
}

type client struct {
	id   debug.ClientID
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAllowRemote accepts connections from non-loopback addresses.
func WithAllowRemote(allow bool) Option {
	return func(h *Hub) { h.allowRemote = allow }
}

// Hub is an http.Handler upgrading requests to websocket debugger sessions.
// It implements debug.Network.
type Hub struct {
	logger      *slog.Logger
	allowRemote bool
	upgrader    websocket.Upgrader

	mu      sync.RWMutex
	handler Handler
	clients map[debug.ClientID]*client
}

var _ debug.Network = (*Hub)(nil)

// NewHub returns a hub without a handler; see SetHandler.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:  slog.Default(),
		clients: make(map[debug.ClientID]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "ws")
	return h
}

// SetHandler installs the receiver of client events. The debug server needs
// the hub as its network, so the two are wired after construction.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

func (h *Hub) currentHandler() Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		id:   debug.ClientID(uuid.NewString()),
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("debugger connected", "client", c.id, "remote", r.RemoteAddr)

	handler := h.currentHandler()
	if handler != nil {
		handler.OnConnect(c.id)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if handler != nil {
			_ = handler.HandleMessage(c.id, msg)
		}
	}

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	<-writerDone
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	_ = conn.Close()
	h.logger.Info("debugger disconnected", "client", c.id)
	if handler != nil {
		handler.OnDisconnect(c.id)
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.logger.Debug("websocket write failed", "client", c.id, "err", err)
				c.close()
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) enqueue(c *client, msg []byte) {
	select {
	case c.out <- msg:
	case <-c.done:
	default:
		h.logger.Warn("dropping debugger message for slow client", "client", c.id)
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, msg)
	}
}

// Send queues msg for one client. Unknown clients are ignored.
func (h *Hub) Send(id debug.ClientID, msg []byte) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if ok {
		h.enqueue(c, msg)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_ = c.conn.Close()
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
