package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingerspell/internal/app"
)

const (
	clientBuffer = 32
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI
	},
}

// wsMessage is sent to clients. Type is "update" or "error".
type wsMessage struct {
	Type  string      `json:"type"`
	Data  *app.Update `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsCommand is read from clients.
type wsCommand struct {
	Action string `json:"action"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes session updates to WebSocket clients and forwards their
// commands to the Controller.
type Hub struct {
	ctrl    Controller
	log     *slog.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a Hub. Register Broadcast as an app listener to feed it.
func NewHub(ctrl Controller, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		ctrl:    ctrl,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast queues u for every client. Slow clients miss updates rather
// than stall the sampler.
func (h *Hub) Broadcast(u app.Update) {
	msg, err := json.Marshal(wsMessage{Type: "update", Data: &u})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}

	if msg, err := json.Marshal(wsMessage{Type: "update", Data: &app.Update{Status: h.ctrl.Status()}}); err == nil {
		h.queue(c, msg)
	}

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	defer h.unregister(c)
	ctx = context.WithoutCancel(ctx)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Action == "" {
			h.reply(c, "expected {\"action\": ...}")
			continue
		}
		if err := h.ctrl.Control(ctx, cmd.Action); err != nil {
			h.reply(c, err.Error())
		}
	}
}

func (h *Hub) reply(c *wsClient, message string) {
	msg, err := json.Marshal(wsMessage{Type: "error", Error: message})
	if err != nil {
		return
	}
	h.queue(c, msg)
}

// queue sends msg to c unless c has left or its buffer is full.
func (h *Hub) queue(c *wsClient, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
