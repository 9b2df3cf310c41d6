package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	prod := &config.Config{Environment: "production", FrontendURL: "https://beta.rpsarena.app/"}
	dev := &config.Config{Environment: "development"}

	tests := []struct {
		cfg    *config.Config
		origin string
		want   bool
	}{
		{prod, "https://rpsarena.app", true},
		{prod, "https://web.telegram.org", true},
		{prod, "https://beta.rpsarena.app", true},
		{prod, "http://localhost:5173", false},
		{prod, "https://evil.example", false},
		{dev, "http://localhost:5173", true},
		{dev, "http://127.0.0.1:3000", true},
		{dev, "https://rpsarena.app", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, originAllowed(tt.cfg, tt.origin), "%s %s", tt.cfg.Environment, tt.origin)
	}
}

func TestWebSocketCORSCheck(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	r := gin.New()
	r.GET("/ws", WebSocketCORSCheck(cfg), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	upgrade := func(origin string) int {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Connection", "keep-alive, Upgrade")
		req.Header.Set("Upgrade", "websocket")
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, upgrade("https://play.rpsarena.app"))
	assert.Equal(t, http.StatusNoContent, upgrade(""))
	assert.Equal(t, http.StatusForbidden, upgrade("https://evil.example"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
