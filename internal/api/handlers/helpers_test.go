package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/ledger"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{game.ErrAlreadyActive, http.StatusConflict},
		{ledger.ErrDuplicateEntry, http.StatusConflict},
		{game.ErrNotQueued, http.StatusNotFound},
		{game.ErrSessionNotFound, http.StatusNotFound},
		{game.ErrStaleSubmission, http.StatusGone},
		{game.ErrNotParticipant, http.StatusForbidden},
		{game.ErrInvalidChoice, http.StatusBadRequest},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{game.ErrShuttingDown, http.StatusServiceUnavailable},
		{fmt.Errorf("stake: %w", ledger.ErrInsufficientFunds), http.StatusPaymentRequired},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, want := range map[string]int{"": 20, "abc": 20, "-3": 20, "5": 5, "1000": 100} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)
		assert.Equal(t, want, queryLimit(c, 20, 100), "limit=%q", raw)
	}
}
