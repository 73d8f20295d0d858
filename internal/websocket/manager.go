package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/models"
)

// Manager streams published snapshots to connected WebSocket clients.
// New clients immediately receive the current snapshot; slow clients are
// dropped rather than allowed to block the broadcast.
type Manager struct {
	cfg    *config.WebSocketConfig
	logger *logrus.Entry

	upgrader websocket.Upgrader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex

	// Last serialized snapshot, sent to clients on connect
	latestMu sync.RWMutex
	latest   []byte

	// Closed when the manager shuts down so client pumps never block on
	// the unregister channel after Run has exited
	done chan struct{}
}

// Client represents one connected WebSocket consumer
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	manager *Manager
}

// NewManager creates a new snapshot stream manager
func NewManager(cfg *config.WebSocketConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.WithField("component", "ws-stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// CORS policy is enforced at the gateway layer
				return true
			},
		},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the manager's main loop
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.closeAll()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.mu.Unlock()

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.mu.Unlock()

		case data := <-m.broadcast:
			m.broadcastData(data)
		}
	}
}

// PublishSnapshot queues a snapshot for broadcast to all clients
func (m *Manager) PublishSnapshot(snap *models.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal snapshot")
		return
	}

	m.latestMu.Lock()
	m.latest = data
	m.latestMu.Unlock()

	select {
	case m.broadcast <- data:
	default:
		m.logger.Warn("Broadcast queue full, dropping snapshot update")
	}
}

// broadcastData sends data to every client, dropping clients whose send
// buffer is full
func (m *Manager) broadcastData(data []byte) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			m.logger.Warn("Client too slow, dropping connection")
			m.drop(client)
		}
	}
}

func (m *Manager) drop(client *Client) {
	m.mu.Lock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
	}
	m.mu.Unlock()
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	for client := range m.clients {
		close(client.send)
		client.conn.Close()
	}
	m.clients = make(map[*Client]bool)
	m.mu.Unlock()
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and
// starts the client's pumps
func (m *Manager) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, m.cfg.SendBuffer),
		manager: m,
	}

	// Greet with the current snapshot before any broadcast arrives
	m.latestMu.RLock()
	if m.latest != nil {
		client.send <- m.latest
	}
	m.latestMu.RUnlock()

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump writes queued messages and pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.manager.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages and detects dead connections
func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.cfg.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
