package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/rpsarena/backend/internal/middleware"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// GetMe returns the caller's balance, VIP state and matchmaking status
func GetMe(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := middleware.AccountID(c)
		acct, err := d.Store.Account(c.Request.Context(), accountID)
		if err != nil {
			log.Printf("[API] Account lookup for %s failed: %v", accountID, err)
			respondError(c, err)
			return
		}
		resp := gin.H{
			"account":    acct,
			"vip_active": acct.ActiveVIP(time.Now()) || c.GetBool(middleware.KeyIsVIP),
		}
		if d.Engine != nil {
			resp["matchmaking"] = d.Engine.Status(accountID)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetMyEntries lists the caller's recent ledger entries
func GetMyEntries(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := d.Store.Entries(c.Request.Context(), middleware.AccountID(c), queryLimit(c, 20, 100))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

// ClaimReferral credits the referrer named by a fresh account
func ClaimReferral(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ReferrerID string `json:"referrer_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "referrer_id is required"})
			return
		}

		ctx := c.Request.Context()
		inviteeID := middleware.AccountID(c)
		if req.ReferrerID == inviteeID {
			respondError(c, ledger.ErrSelfReferral)
			return
		}
		if req.ReferrerID == ledger.HouseAccount || inviteeID == ledger.HouseAccount {
			respondError(c, ledger.ErrInvalidAccount)
			return
		}
		fresh, err := ledger.Fresh(ctx, d.Store, inviteeID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !fresh {
			c.JSON(http.StatusConflict, gin.H{"error": "referrals are only accepted from new accounts"})
			return
		}

		referrer, err := d.Store.Account(ctx, req.ReferrerID)
		if err != nil {
			respondError(c, err)
			return
		}
		res, err := ledger.CreditReferral(ctx, d.Store, req.ReferrerID, inviteeID,
			int64(d.Config.ReferralReward), int64(d.Config.ReferralInviteeReward),
			referrer.ActiveVIP(time.Now()), d.Config.VIPReferralMultiplier)
		if err != nil {
			if !errors.Is(err, ledger.ErrDuplicateEntry) {
				log.Printf("[API] Referral %s -> %s failed: %v", req.ReferrerID, inviteeID, err)
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"referrer_credit": res.ReferrerCredit,
			"invitee_credit":  res.InviteeCredit,
		})
	}
}
