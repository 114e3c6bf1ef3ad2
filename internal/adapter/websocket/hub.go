package websocket

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/observability/telemetry"
)

// Hub fans broadcast frames out to every connected dashboard. Slow clients
// are dropped rather than allowed to back-pressure the commit path.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Frames to fan out to every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// onMessage, when set, receives inbound frames from any client.
	onMessage func(client *Client, data []byte)

	mu  sync.RWMutex
	log *zap.Logger
}

type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
	// Connection identity from the token, for logs.
	identity string
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// OnMessage registers the inbound frame handler. Call before Run.
func (h *Hub) OnMessage(fn func(client *Client, data []byte)) {
	h.onMessage = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			telemetry.ConnectedDashboards.Inc()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				telemetry.ConnectedDashboards.Dec()
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					telemetry.ConnectedDashboards.Dec()
					h.log.Warn("Dropping slow dashboard client",
						zap.String("identity", client.identity),
					)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast enqueues a frame for every connected client. Never blocks: when
// the hub itself is saturated the frame is dropped, since dashboards can
// always re-fetch the current document.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Broadcast queue full, dropping frame")
	}
}

// AddClient hands a fresh connection to the hub and pumps it until the
// connection closes. welcome, when non-nil, is sent before any broadcast
// frame that follows registration.
func (h *Hub) AddClient(conn *websocket.Conn, identity string, welcome []byte) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), identity: identity}
	client.hub.register <- client

	if welcome != nil {
		client.send <- welcome
	}

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(c, data)
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Flush anything already queued into the same websocket frame.
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
