package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (should be restricted in production)
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one WebSocket subscriber following optimization runs.
type Client struct {
	RunIDs   []string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *ProgressHub
	LastSeen time.Time
}

// ProgressUpdate is one optimizer event pushed out to subscribers.
type ProgressUpdate struct {
	RunID     string         `json:"run_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProgressHub fans optimizer progress events out to WebSocket subscribers,
// keyed by run ID. Clients with no run filter receive every event.
type ProgressHub struct {
	clients    map[*Client]bool
	runClients map[string][]*Client
	broadcast  chan *ProgressUpdate
	register   chan *Client
	unregister chan *Client
	logger     *logrus.Logger
	mutex      sync.RWMutex
}

func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*Client]bool),
		runClients: make(map[string][]*Client),
		broadcast:  make(chan *ProgressUpdate, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run starts the hub and handles client registration/unregistration
func (h *ProgressHub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case update := <-h.broadcast:
			h.broadcastUpdate(update)

		case <-ticker.C:
			h.pingClients()
		}
	}
}

// BroadcastProgress queues an optimizer event for delivery. Safe to call from
// the orchestrator goroutine.
func (h *ProgressHub) BroadcastProgress(runID, kind string, payload map[string]any) {
	update := &ProgressUpdate{
		RunID:     runID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- update:
	default:
		h.logger.WithField("run_id", runID).Warn("Progress broadcast queue full, dropping event")
	}
}

func (h *ProgressHub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	for _, runID := range client.RunIDs {
		h.runClients[runID] = append(h.runClients[runID], client)
	}

	h.logger.WithFields(logrus.Fields{
		"run_ids":       client.RunIDs,
		"total_clients": len(h.clients),
	}).Info("Progress WebSocket client connected")
}

func (h *ProgressHub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	for _, runID := range client.RunIDs {
		runClients := h.runClients[runID]
		for i, c := range runClients {
			if c == client {
				h.runClients[runID] = append(runClients[:i], runClients[i+1:]...)
				break
			}
		}
		if len(h.runClients[runID]) == 0 {
			delete(h.runClients, runID)
		}
	}

	h.logger.WithFields(logrus.Fields{
		"total_clients": len(h.clients),
	}).Info("Progress WebSocket client disconnected")
}

func (h *ProgressHub) broadcastUpdate(update *ProgressUpdate) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	data, err := json.Marshal(update)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	// Run-scoped subscribers first, then firehose clients with no filter.
	for _, client := range h.runClients[update.RunID] {
		h.sendToClient(client, data)
	}
	for client := range h.clients {
		if len(client.RunIDs) == 0 {
			h.sendToClient(client, data)
		}
	}
}

func (h *ProgressHub) sendToClient(client *Client, data []byte) {
	select {
	case client.Send <- data:
		client.LastSeen = time.Now()
	default:
		// Client's send channel is full, close the connection
		go func() { h.unregister <- client }()
	}
}

func (h *ProgressHub) pingClients() {
	h.mutex.RLock()
	staleClients := []*Client{}
	now := time.Now()
	for client := range h.clients {
		if now.Sub(client.LastSeen) > 2*time.Minute {
			staleClients = append(staleClients, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range staleClients {
		h.unregister <- client
	}

	if len(staleClients) > 0 {
		h.logger.WithField("stale_clients", len(staleClients)).Debug("Removed stale WebSocket clients")
	}
}

// GetConnectionCount returns the total number of active connections
func (h *ProgressHub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and subscribes the client to the
// runs named by the run_id query parameter (repeatable); no parameter means
// all runs.
func (h *ProgressHub) HandleWebSocket(c *gin.Context) {
	runIDs := c.QueryArray("run_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade progress WebSocket connection")
		return
	}

	client := &Client{
		RunIDs:   runIDs,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      h,
		LastSeen: time.Now(),
	}

	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastSeen = time.Now()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("Progress WebSocket error")
			}
			break
		}
		c.LastSeen = time.Now()
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.WithError(err).Error("Failed to write progress WebSocket message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
