package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Hub fans session progress updates out to every client watching that session
type Hub struct {
	sessions   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan sessionMessage
	done       chan struct{}
	mu         sync.RWMutex
}

type sessionMessage struct {
	sessionID string
	payload   []byte
	target    *Client // nil means every watcher of the session
}

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	SessionID string
}

// Message is what a watcher may send; only keep-alive pings are understood
type Message struct {
	Type string `json:"type"` // "ping"
}

type controlMessage struct {
	Type      string `json:"type"` // "pong", "subscribed"
	SessionID string `json:"session_id"`
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sessionMessage, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			watchers, ok := h.sessions[client.SessionID]
			if !ok {
				watchers = make(map[*Client]bool)
				h.sessions[client.SessionID] = watchers
			}
			watchers[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.sessions[message.sessionID] {
				if message.target != nil && message.target != client {
					continue
				}
				select {
				case client.Send <- message.payload:
				default:
					slog.Warn("Dropping slow watcher", "user_id", client.UserID, "session_id", client.SessionID)
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, watchers := range h.sessions {
				for client := range watchers {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	watchers, ok := h.sessions[client.SessionID]
	if !ok || !watchers[client] {
		return
	}
	delete(watchers, client)
	close(client.Send)
	if len(watchers) == 0 {
		delete(h.sessions, client.SessionID)
	}
}

// Stop ends Run and closes every client's send channel
func (h *Hub) Stop() {
	close(h.done)
}

// Publish queues payload for every watcher of sessionID. It never blocks the caller.
func (h *Hub) Publish(sessionID string, payload []byte) {
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, payload: payload}:
	default:
		slog.Warn("Progress feed saturated, dropping update", "session_id", sessionID)
	}
}

// Watchers reports how many clients currently watch sessionID
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
	}

	select {
	case h.register <- client:
		client.sendControl("subscribed")
	case <-h.done:
	}
	return client
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			c.sendControl("pong")
		default:
			slog.Warn("Unknown message type", "type", msg.Type, "session_id", c.SessionID)
		}
	}
}

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

func (c *Client) sendControl(kind string) {
	data, err := json.Marshal(controlMessage{Type: kind, SessionID: c.SessionID})
	if err != nil {
		slog.Error("Failed to marshal control message", "error", err)
		return
	}
	select {
	case c.Hub.broadcast <- sessionMessage{sessionID: c.SessionID, payload: data, target: c}:
	default:
	}
}
