package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nexus/internal/domain/entity"
	"nexus/internal/infrastructure/metrics"
	"nexus/internal/infrastructure/ratelimit"
	"nexus/internal/usecase"
	"nexus/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// ChatService is what the broker needs from the chat lifecycle.
type ChatService interface {
	PostMessage(ctx context.Context, caller entity.CallerIdentity, input usecase.PostMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, messageID string) (*entity.Message, error)
}

// Client is one live connection. UserID is whatever the client announced
// on connect and may be empty.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

func (c *Client) caller() entity.CallerIdentity {
	return entity.CallerIdentity{UserID: c.UserID}
}

// delivery is one frame on its way out. A nil target means every client
// except exclude.
type delivery struct {
	payload []byte
	target  *Client
	exclude *Client
}

type Options struct {
	OpTimeout time.Duration
	Limiter   *ratelimit.RateLimiter
	Metrics   *metrics.Collector
}

// Manager owns the connection registry. Only the run loop writes to a
// client's Send channel or closes it.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	outbound   chan delivery
	done       chan struct{}
	mutex      sync.RWMutex

	chat      ChatService
	limiter   *ratelimit.RateLimiter
	metrics   *metrics.Collector
	opTimeout time.Duration
}

func NewManager(chat ChatService, opts Options) *Manager {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 10 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewRateLimiter(nil)
	}
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		outbound:   make(chan delivery, sendBufferSize),
		done:       make(chan struct{}),
		chat:       chat,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		opTimeout:  opts.OpTimeout,
	}
}

// Start runs the manager's main loop until ctx is cancelled, then closes
// every connection.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer m.shutdown()

		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.ID] = client
				m.mutex.Unlock()
				m.metrics.ClientConnected()
				logger.Info("Client registered: conn=%s user=%s", client.ID, client.UserID)

			case client := <-m.Unregister:
				if m.remove(client) {
					logger.Info("Client unregistered: conn=%s user=%s", client.ID, client.UserID)
				}

			case d := <-m.outbound:
				m.deliver(d)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) shutdown() {
	close(m.done)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
		m.metrics.ClientDisconnected()
	}
}

// remove must run on the loop goroutine.
func (m *Manager) remove(client *Client) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return false
	}
	delete(m.clients, client.ID)
	close(client.Send)
	m.limiter.Forget(client.ID)
	m.metrics.ClientDisconnected()
	return true
}

func (m *Manager) deliver(d delivery) {
	if d.target != nil {
		m.mutex.RLock()
		_, ok := m.clients[d.target.ID]
		m.mutex.RUnlock()
		if ok {
			m.trySend(d.target, d.payload)
		}
		return
	}

	m.mutex.RLock()
	targets := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		if client != d.exclude {
			targets = append(targets, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		m.trySend(client, d.payload)
	}
}

// trySend drops a client whose buffer is full rather than stall the loop.
func (m *Manager) trySend(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Warn("Dropping slow client conn=%s user=%s", client.ID, client.UserID)
		m.remove(client)
	}
}

func (m *Manager) enqueue(d delivery) {
	select {
	case m.outbound <- d:
	case <-m.done:
	}
}

// ClientCount returns the number of registered connections.
func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Broadcast sends an event to every client except exclude, which may be nil.
func (m *Manager) Broadcast(eventType string, data interface{}, exclude *Client) {
	payload, err := encode(eventType, data)
	if err != nil {
		logger.Error("Failed to encode %s event: %v", eventType, err)
		return
	}
	m.enqueue(delivery{payload: payload, exclude: exclude})
}

// SendTo sends an event to one client only.
func (m *Manager) SendTo(client *Client, eventType string, data interface{}) {
	payload, err := encode(eventType, data)
	if err != nil {
		logger.Error("Failed to encode %s event: %v", eventType, err)
		return
	}
	m.enqueue(delivery{payload: payload, target: client})
}

// Notify implements usecase.Notifier. There are no per-user rooms; every
// client gets the event and filters on the userId it carries.
func (m *Manager) Notify(event string, payload interface{}) {
	m.Broadcast(event, payload, nil)
}

// Attach registers conn and starts its pumps. It returns once the client is
// registered.
func (m *Manager) Attach(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}

	select {
	case m.Register <- client:
	case <-m.done:
		conn.Close()
		return client
	}

	go client.WritePump()
	go client.ReadPump(m)
	return client
}

// ReadPump reads frames and handles them one at a time.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error conn=%s: %v", c.ID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump drains Send and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket write error conn=%s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(OutboundEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
