package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/middleware"
)

// JoinGame stakes the entry fee and queues the caller
func JoinGame(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := middleware.AccountID(c)

		if d.Throttle != nil {
			ok, err := d.Throttle(c.Request.Context(), accountID)
			if err != nil {
				log.Printf("[API] Join throttle check failed for %s: %v", accountID, err)
			} else if !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many join attempts"})
				return
			}
		}

		res, err := d.Engine.Join(c.Request.Context(), accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		if res.SessionID != "" {
			c.Header("X-Session-ID", res.SessionID)
		}
		c.JSON(http.StatusOK, res)
	}
}

// LeaveGame cancels the caller's waiting entry
func LeaveGame(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		refunded, err := d.Engine.Leave(c.Request.Context(), middleware.AccountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"refunded": refunded})
	}
}

// SubmitChoice records the caller's move in a session
func SubmitChoice(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Choice string `json:"choice" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "choice is required"})
			return
		}
		choice, err := game.ParseChoice(req.Choice)
		if err != nil {
			respondError(c, err)
			return
		}

		sessionID := c.Param("session")
		if err := d.Engine.SubmitChoice(c.Request.Context(), middleware.AccountID(c), sessionID, choice); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "accepted": true})
	}
}

// QueueStatus reports whether the caller is waiting or playing
func QueueStatus(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := d.Engine.Status(middleware.AccountID(c))
		if st.Queued {
			c.Header("X-Queue-Position", itoa(st.Position))
		}
		c.JSON(http.StatusOK, st)
	}
}
