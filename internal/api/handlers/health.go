package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{
			"status":  "ok",
			"service": "rpsarena-api",
			"version": version,
			"uptime":  time.Since(startTime).String(),
		}
		if d.Engine != nil {
			resp["matchmaking"] = d.Engine.Stats()
		}
		if d.Redis != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := d.Redis.Ping(ctx).Err(); err != nil {
				resp["redis"] = "down"
				resp["status"] = "degraded"
			} else {
				resp["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
