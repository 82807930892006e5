package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 4 * 1024

	// Outbound frames buffered per subscriber before it is dropped.
	sendBuffer = 64
)

// ErrHubClosed is returned by Broadcast once Run has returned
var ErrHubClosed = errors.New("realtime hub closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of realtime subscribers and fans attendance events out to them.
type Hub struct {
	// Registered subscribers.
	clients map[*Client]struct{}

	// Register requests from the subscribers.
	register chan *Client

	// Unregister requests from subscribers.
	unregister chan *Client

	// Encoded frames to deliver to every subscriber. Unbuffered.
	broadcast chan []byte

	// Closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHub creates a new realtime hub
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done, disconnecting every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.SetSubscribers(0)
			h.logger.Info("Realtime hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetSubscribers(count)
			h.logger.Info("Subscriber registered", zap.String("subscriberID", client.id))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Subscriber unregistered", zap.String("subscriberID", client.id))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Broadcast implements AttendanceBroadcaster interface. It blocks until the hub loop
// takes the event, ctx ends, or the hub stops.
func (h *Hub) Broadcast(ctx context.Context, event *entities.AttendanceEvent) error {
	message, err := NewAttendanceMessage(event)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver never waits on a subscriber. One that cannot take the frame is dropped.
func (h *Hub) deliver(message []byte) {
	h.mu.Lock()
	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			dropped++
			h.logger.Warn("Dropping slow subscriber", zap.String("subscriberID", client.id))
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.Broadcast()
	for i := 0; i < dropped; i++ {
		h.metrics.SubscriberDropped()
	}
	if dropped > 0 {
		h.metrics.SetSubscribers(count)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetSubscribers(count)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed by the hub only.
	send chan []byte

	id     string
	logger *zap.Logger
}

// ServeSubscriber upgrades the request and registers the connection as a realtime subscriber.
func (h *Hub) ServeSubscriber(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		id:     uuid.New().String(),
		logger: h.logger,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump drains inbound frames so ping/pong and close are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, NewConnectedMessage()); err != nil {
		return
	}

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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
