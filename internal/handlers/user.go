package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashrafr/papertrade/internal/models"
)

// Profile handles GET /api/user/profile: account info plus open positions.
func (h *Handlers) Profile(c *gin.Context) {
	userID := currentUser(c)
	ctx := c.Request.Context()

	account, err := h.store.GetAccount(ctx, userID)
	if errors.Is(err, models.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	holdings, err := h.store.ListHoldings(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, models.ProfileResponse{
		User:     *account,
		Holdings: holdings,
	})
}

// Health handles GET /api/health, reporting store reachability.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeState := "Connected"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		storeState = "Disconnected"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"store":     storeState,
	})
}
