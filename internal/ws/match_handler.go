package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/middleware"
)

// Engine is the part of the matchmaking engine the socket drives
type Engine interface {
	Join(ctx context.Context, accountID string) (*game.JoinResult, error)
	Leave(ctx context.Context, accountID string) (int64, error)
	SubmitChoice(ctx context.Context, accountID, sessionID string, choice game.Choice) error
	Status(accountID string) game.PlayerStatus
}

// ThrottleFunc reports whether accountID may join right now
type ThrottleFunc func(ctx context.Context, accountID string) (bool, error)

type ChoiceData struct {
	SessionID string `json:"session_id"`
	Choice    string `json:"choice"`
}

// Handler upgrades authenticated requests and relays player commands to the engine
type Handler struct {
	hub      *Hub
	engine   Engine
	throttle ThrottleFunc
}

func NewHandler(hub *Hub, engine Engine, throttle ThrottleFunc) *Handler {
	return &Handler{hub: hub, engine: engine, throttle: throttle}
}

// Serve must run behind middleware.RequireAuth
func (h *Handler) Serve(c *gin.Context) {
	accountID := middleware.AccountID(c)
	if accountID == "" {
		c.JSON(401, gin.H{"error": "missing token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:      conn,
		accountID: accountID,
		send:      make(chan []byte, 256),
	}
	h.hub.Register(client)
	h.hub.reply(client, map[string]interface{}{
		"type":   "status",
		"status": h.engine.Status(accountID),
	})

	go client.writePump()
	go h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Unexpected close for %s: %v", c.accountID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "bad_request", "Invalid message")
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "join":
		if h.throttle != nil {
			if ok, err := h.throttle(ctx, c.accountID); err != nil {
				log.Printf("[WS] Join throttle check failed for %s: %v", c.accountID, err)
			} else if !ok {
				h.sendError(c, "rate_limited", "Too many join attempts, slow down")
				return
			}
		}
		res, err := h.engine.Join(ctx, c.accountID)
		if err != nil {
			h.sendEngineError(c, err)
			return
		}
		h.hub.reply(c, map[string]interface{}{"type": "joined", "result": res})

	case "leave":
		refunded, err := h.engine.Leave(ctx, c.accountID)
		if err != nil {
			h.sendEngineError(c, err)
			return
		}
		h.hub.reply(c, map[string]interface{}{"type": "left", "refunded": refunded})

	case "choice":
		var data ChoiceData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.SessionID == "" {
			h.sendError(c, "bad_request", "Invalid choice data")
			return
		}
		choice, err := game.ParseChoice(data.Choice)
		if err != nil {
			h.sendEngineError(c, err)
			return
		}
		if err := h.engine.SubmitChoice(ctx, c.accountID, data.SessionID, choice); err != nil {
			h.sendEngineError(c, err)
			return
		}
		h.hub.reply(c, map[string]interface{}{"type": "choice_accepted", "session_id": data.SessionID})

	case "status":
		h.hub.reply(c, map[string]interface{}{"type": "status", "status": h.engine.Status(c.accountID)})

	default:
		h.sendError(c, "bad_request", "Unknown message type")
	}
}

func (h *Handler) sendError(c *Client, code, message string) {
	h.hub.reply(c, map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}

func (h *Handler) sendEngineError(c *Client, err error) {
	h.sendError(c, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, game.ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, game.ErrNotQueued):
		return "not_queued"
	case errors.Is(err, game.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, game.ErrStaleSubmission):
		return "stale_submission"
	case errors.Is(err, game.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, game.ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, game.ErrShuttingDown):
		return "unavailable"
	}
	return "internal"
}
