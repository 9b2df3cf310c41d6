package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rpsarena/backend/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

// Client is one websocket connection of an authenticated account
type Client struct {
	conn      *websocket.Conn
	accountID string
	send      chan []byte
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks the live connection of every account. A newer connection for
// the same account replaces the older one.
type Hub struct {
	clients map[string]*Client // accountID -> Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, exists := h.clients[c.accountID]; exists {
		log.Printf("[WS] Account %s reconnecting - closing old connection", c.accountID)
		if err := old.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"), time.Now().Add(5*time.Second)); err != nil {
			log.Printf("[WS] Error writing close control to old client %s: %v", old.accountID, err)
		}
		old.close()
	}
	h.clients[c.accountID] = c
	log.Printf("[WS] Account %s connected (clients=%d)", c.accountID, len(h.clients))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.accountID]; ok && cur == c {
		delete(h.clients, c.accountID)
		c.close()
		log.Printf("[WS] Account %s disconnected", c.accountID)
	}
}

func (h *Hub) Connected(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[accountID]
	return ok
}

// SendToAccount queues a message for an account's connection. It reports
// false when the account is offline or its buffer is full.
func (h *Hub) SendToAccount(accountID string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, exists := h.clients[accountID]
	if !exists {
		return false
	}
	return enqueue(client, data)
}

// reply sends to c only while c is still the account's registered connection
func (h *Hub) reply(c *Client, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling reply: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.accountID] == c {
		enqueue(c, data)
	}
}

func enqueue(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("[WS] Dropped message for %s (buffer full)", c.accountID)
		return false
	}
}

// Deliver forwards a match event to its recipients. Offline recipients are
// skipped; the ledger never depends on delivery.
func (h *Hub) Deliver(_ context.Context, ev events.Event) error {
	for _, id := range ev.Recipients() {
		if !h.SendToAccount(id, ev) {
			log.Printf("[WS] %s event for %s not delivered (offline)", ev.Type, id)
		}
	}
	return nil
}

// WSMessage is an inbound client message
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// replaced or unregistered; best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for %s: %v", c.accountID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for %s: %v", c.accountID, err)
				return
			}
		}
	}
}
