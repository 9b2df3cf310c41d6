package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rpsarena/backend/internal/admin"
	"github.com/rpsarena/backend/internal/config"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/ledger"
)

// Deps carries what the handlers need
type Deps struct {
	Config *config.Config
	Engine *game.Engine
	Store  ledger.Store
	Admins admin.Store
	Redis  *redis.Client

	// Throttle limits join attempts per account; nil allows everything
	Throttle func(ctx context.Context, accountID string) (bool, error)
}

// statusFor maps engine and ledger errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrAlreadyActive), errors.Is(err, ledger.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, game.ErrSessionNotFound), errors.Is(err, game.ErrNotQueued):
		return http.StatusNotFound
	case errors.Is(err, game.ErrStaleSubmission):
		return http.StatusGone
	case errors.Is(err, game.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidChoice), errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAccount), errors.Is(err, ledger.ErrSelfReferral):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// queryLimit reads ?limit= clamped to [1, ceiling]
func queryLimit(c *gin.Context, def, ceiling int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
