package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConfig returns the game economics clients display
func GetConfig(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		econ := d.Engine.Economics()
		c.JSON(http.StatusOK, gin.H{
			"entry_fee":               econ.EntryFee,
			"win_reward":              econ.WinReward,
			"wait_seconds":            int(econ.WaitWindow.Seconds()),
			"choice_seconds":          int(econ.ChoiceWindow.Seconds()),
			"referral_reward":         d.Config.ReferralReward,
			"referral_invitee_reward": d.Config.ReferralInviteeReward,
			"vip_referral_multiplier": d.Config.VIPReferralMultiplier,
		})
	}
}
