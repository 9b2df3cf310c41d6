package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rpsarena/backend/internal/config"
)

// Origins of the web client and the Telegram Mini App host
var productionOrigins = []string{
	"https://rpsarena.app",
	"https://play.rpsarena.app",
	"https://web.telegram.org",
}

// AllowedOrigins lists the browser origins accepted outside development
func AllowedOrigins(cfg *config.Config) []string {
	origins := append([]string(nil), productionOrigins...)
	if cfg.FrontendURL != "" {
		origins = append(origins, strings.TrimRight(cfg.FrontendURL, "/"))
	}
	return origins
}

func originAllowed(cfg *config.Config, origin string) bool {
	if cfg.Environment == "development" {
		return strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	for _, o := range AllowedOrigins(cfg) {
		if origin == o {
			return true
		}
	}
	return false
}

// CORSMiddleware lets the web client call the API with a bearer token.
// No cookies are involved, so credentials stay off.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.Environment == "development" {
		log.Println("[CORS] Development: any localhost origin allowed")
	} else {
		log.Printf("[CORS] Allowed origins: %v", AllowedOrigins(cfg))
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return originAllowed(cfg, origin) },
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			"X-Admin-Username", "X-Admin-Token",
		},
		ExposeHeaders: []string{"X-Session-ID", "X-Queue-Position"},
		MaxAge:        12 * time.Hour,
	})
}

// WebSocketCORSCheck rejects socket upgrades from browser origins that are
// not allowed. Native clients send no Origin and rely on the token alone.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin != "" && !originAllowed(cfg, origin) {
			log.Printf("[WS] Rejected upgrade from origin %s", origin)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "websocket origin not allowed"})
			return
		}
		c.Next()
	}
}
