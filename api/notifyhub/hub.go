package notifyhub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/moyoez/gfpgan-client/types"
)

const (
	writeWait = 5 * time.Second
	queueSize = 32
)

// client owns one connection. Only its writer goroutine writes to conn, so
// a slow browser never holds up Notify.
type client struct {
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// Hub holds WebSocket connections and broadcasts notifications to all clients.
// It implements notify.Sink.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]*client
}

// New creates a new notify hub.
func New() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]*client),
	}
}

// Register adds a WebSocket connection to the hub and starts its writer.
func (h *Hub) Register(conn *websocket.Conn) {
	cl := h.register(conn)
	go cl.writeLoop(h)
}

// register adds the connection without starting its writer; broadcasts
// queue up until writeLoop runs.
func (h *Hub) register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl := &client{
		conn:  conn,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
	h.conns[conn] = cl
	return cl
}

// Unregister removes a WebSocket connection from the hub and stops its writer.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	cl, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if ok {
		cl.stop()
	}
}

// Len is the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Notify queues the notification as JSON for every registered connection
// and returns without waiting for the writes. A connection whose queue is
// full is dropped.
func (h *Hub) Notify(notification *types.Notification) {
	if notification == nil {
		return
	}
	payload, err := sonic.Marshal(notification)
	if err != nil {
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.conns {
		select {
		case c.queue <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.Unregister(c.conn)
		_ = c.conn.Close()
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writeLoop(h *Hub) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.queue:
			if err := c.write(payload); err != nil {
				h.Unregister(c.conn)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *client) write(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *client) send(n *types.Notification) error {
	payload, err := sonic.Marshal(n)
	if err != nil {
		return err
	}
	return c.write(payload)
}
