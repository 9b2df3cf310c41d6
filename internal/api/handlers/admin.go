package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rpsarena/backend/internal/admin"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/middleware"
)

func audit(c *gin.Context, d *Deps, action string, details map[string]interface{}, success bool) {
	username := c.GetString(middleware.KeyAdminUsername)
	if err := admin.LogAdminAction(c.Request.Context(), d.Admins, username, c.ClientIP(), c.FullPath(), action, details, success); err != nil {
		log.Printf("[ADMIN] Failed to write audit entry for %s/%s: %v", username, action, err)
	}
}

// AdminCredit grants points to an account
func AdminCredit(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount int64  `json:"amount" binding:"required"`
			Reason string `json:"reason"`
			Key    string `json:"idempotency_key"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
			return
		}

		accountID := c.Param("id")
		// admin keys get their own namespace apart from engine keys
		key := req.Key
		if key == "" {
			key = uuid.New().String()
		}
		key = "admin:" + key
		details := map[string]interface{}{"account_id": accountID, "amount": req.Amount, "reason": req.Reason, "key": key}

		balance, err := d.Store.Credit(c.Request.Context(), accountID, req.Amount, ledger.Ref{
			Type:        ledger.EntryAdminAdjust,
			Key:         key,
			Reference:   c.GetString(middleware.KeyAdminUsername),
			Description: req.Reason,
		})
		if err != nil {
			audit(c, d, "credit", details, false)
			respondError(c, err)
			return
		}

		audit(c, d, "credit", details, true)
		log.Printf("[ADMIN] %s credited %d to %s", c.GetString(middleware.KeyAdminUsername), req.Amount, accountID)
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance})
	}
}

// AdminGrantVIP sets or extends an account's VIP status
func AdminGrantVIP(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Days int `json:"days" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be positive"})
			return
		}

		accountID := c.Param("id")
		until := time.Now().Add(time.Duration(req.Days) * 24 * time.Hour)
		details := map[string]interface{}{"account_id": accountID, "days": req.Days}

		if err := d.Store.GrantVIP(c.Request.Context(), accountID, until); err != nil {
			audit(c, d, "grant_vip", details, false)
			respondError(c, err)
			return
		}
		audit(c, d, "grant_vip", details, true)
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "vip_until": until})
	}
}

// AdminAccountEntries lists an account's recent ledger entries
func AdminAccountEntries(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("id")
		acct, err := d.Store.Account(c.Request.Context(), accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		entries, err := d.Store.Entries(c.Request.Context(), accountID, queryLimit(c, 50, 500))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": acct, "entries": entries})
	}
}

// AdminResettle replays the recorded payouts of a session
func AdminResettle(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		details := map[string]interface{}{"session_id": sessionID}
		if err := d.Engine.Resettle(c.Request.Context(), sessionID); err != nil {
			audit(c, d, "resettle", details, false)
			respondError(c, err)
			return
		}
		audit(c, d, "resettle", details, true)
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "resettled": true})
	}
}

// AdminRecover applies every journaled payout that is still pending
func AdminRecover(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := d.Engine.RecoverPending(c.Request.Context())
		audit(c, d, "recover", map[string]interface{}{"applied": n}, err == nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"applied": n})
	}
}

// AdminSession returns a live session snapshot
func AdminSession(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := d.Engine.Session(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("session %s is not live", c.Param("id"))})
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// AdminAuditLog pages through the admin audit log
func AdminAuditLog(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryLimit(c, 50, 200)
		offset, _ := strconv.Atoi(c.Query("offset"))
		if offset < 0 {
			offset = 0
		}
		rows, err := d.Admins.Audit(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": rows, "limit": limit, "offset": offset})
	}
}

// AdminIssueToken signs a player token for an account, for tools and support
func AdminIssueToken(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("id")
		if accountID == ledger.HouseAccount {
			respondError(c, ledger.ErrInvalidAccount)
			return
		}
		acct, err := d.Store.Account(c.Request.Context(), accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		ttl := time.Duration(d.Config.TokenTTLHours) * time.Hour
		token, err := middleware.IssueToken(d.Config.JWTSecret, accountID, acct.ActiveVIP(time.Now()), ttl)
		audit(c, d, "issue_token", map[string]interface{}{"account_id": accountID}, err == nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "token": token, "expires_in": int(ttl.Seconds())})
	}
}
