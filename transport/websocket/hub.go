package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/prajjwaltripathi07/chess/game/config"
	"github.com/prajjwaltripathi07/chess/game/service"
	"github.com/prajjwaltripathi07/chess/game/session"
)

// ObserveParam is the query parameter that attaches a connection to a
// session as an observer instead of seating it
const ObserveParam = "observe"

// Gateway is the part of service.Gateway the hub drives
type Gateway interface {
	Connect(conn service.Conn) session.Placement
	Observe(conn service.Conn, sessionID string) (session.Placement, error)
	Message(connID string, data []byte)
	Disconnect(connID string)
	Shutdown()
}

// Client is one WebSocket connection. It implements service.Conn.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	observe string

	closeOnce sync.Once
}

type inbound struct {
	client *Client
	data   []byte
}

// Hub owns every WebSocket client and feeds their events to the gateway
// from a single goroutine
type Hub struct {
	gateway  Gateway
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// Registered clients, owned by Run
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Frames read from clients
	inbound chan inbound

	done chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(gateway Gateway, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Hub{
		gateway:    gateway,
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run starts the hub's event loop and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.gateway.Shutdown()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
	}()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case in := <-h.inbound:
			if h.clients[in.client] {
				h.gateway.Message(in.client.id, in.data)
			}

		case <-ctx.Done():
			h.logger.Info("hub stopping", zap.Int("clients", len(h.clients)))
			return
		}
	}
}

// ServeWS upgrades the request and hands the connection to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer()),
		observe: strings.TrimSpace(r.URL.Query().Get(ObserveParam)),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// Send queues msg for the write pump. A client whose queue is full is
// disconnected.
func (c *Client) Send(msg *service.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("client send buffer full, closing", zap.String("conn", c.id))
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// registerClient seats or attaches a client
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true

	if client.observe != "" {
		if _, err := h.gateway.Observe(client, client.observe); err != nil {
			// The error frame is already queued; closing send flushes it
			delete(h.clients, client)
			close(client.send)
			return
		}
	} else {
		h.gateway.Connect(client)
	}

	h.logger.Debug("client registered",
		zap.String("conn", client.id),
		zap.Int("clients", len(h.clients)))
}

// unregisterClient removes a client and tells the gateway it left
func (h *Hub) unregisterClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	h.gateway.Disconnect(client.id)
	close(client.send)

	h.logger.Debug("client unregistered",
		zap.String("conn", client.id),
		zap.Int("clients", len(h.clients)))
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warn("websocket origin rejected", zap.String("origin", origin))
	return false
}

func (h *Hub) sendBuffer() int {
	if h.cfg.SendBuffer > 0 {
		return h.cfg.SendBuffer
	}
	return 64
}

func (h *Hub) pongWait() time.Duration {
	if h.cfg.PongWait > 0 {
		return h.cfg.PongWait
	}
	return 60 * time.Second
}

func (h *Hub) writeWait() time.Duration {
	if h.cfg.WriteWait > 0 {
		return h.cfg.WriteWait
	}
	return 10 * time.Second
}

// readPump pumps frames from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.close()
	}()

	pongWait := c.hub.pongWait()
	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection. Each
// message is its own frame.
func (c *Client) writePump() {
	writeWait := c.hub.writeWait()
	ticker := time.NewTicker(c.hub.pongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
