package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/api/handlers"
	"github.com/rpsarena/backend/internal/middleware"
	"github.com/rpsarena/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d *handlers.Deps, wsHandler *ws.Handler) {
	cfg := d.Config

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck(d))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d))
		v1.GET("/config", handlers.GetConfig(d))

		auth := middleware.RequireAuth(cfg.JWTSecret)

		game := v1.Group("/game", auth)
		{
			game.POST("/join", handlers.JoinGame(d))
			game.POST("/leave", handlers.LeaveGame(d))
			game.GET("/queue/status", handlers.QueueStatus(d))
			if wsHandler != nil {
				game.GET("/ws", middleware.WebSocketCORSCheck(cfg), wsHandler.Serve)
			}
			game.POST("/:session/choice", handlers.SubmitChoice(d))
		}

		player := v1.Group("/player", auth)
		{
			player.GET("/me", handlers.GetMe(d))
			player.GET("/me/entries", handlers.GetMyEntries(d))
		}

		v1.POST("/referrals", auth, handlers.ClaimReferral(d))

		adm := v1.Group("/admin", middleware.RequireAdmin(d.Admins))
		{
			adm.POST("/accounts/:id/credit", handlers.AdminCredit(d))
			adm.POST("/accounts/:id/vip", handlers.AdminGrantVIP(d))
			adm.POST("/accounts/:id/token", handlers.AdminIssueToken(d))
			adm.GET("/accounts/:id/entries", handlers.AdminAccountEntries(d))
			adm.GET("/sessions/:id", handlers.AdminSession(d))
			adm.POST("/sessions/:id/resettle", handlers.AdminResettle(d))
			adm.POST("/recover", handlers.AdminRecover(d))
			adm.GET("/audit", handlers.AdminAuditLog(d))
		}
	}
}
