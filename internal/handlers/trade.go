package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashrafr/papertrade/internal/models"
	"github.com/ashrafr/papertrade/internal/settlement"
)

const historyLimit = 50

// PlaceTrade handles POST /api/trades/place.
func (h *Handlers) PlaceTrade(c *gin.Context) {
	var req models.PlaceTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	res, err := h.processor.Submit(c.Request.Context(), settlement.Order{
		UserID:   currentUser(c),
		Symbol:   req.Symbol,
		Side:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		h.writeTradeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Trade successful",
		"balance": res.Balance,
	})
}

// TradeHistory handles GET /api/trades/history. Newest trades first.
func (h *Handlers) TradeHistory(c *gin.Context) {
	trades, err := h.store.ListTrades(c.Request.Context(), currentUser(c), historyLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, trades)
}

// writeTradeError maps settlement outcomes to the wire contract: business
// rejections are 400s with a user-facing message, unknown users 404, an
// exhausted conflict 409, and store failures 500.
func (h *Handlers) writeTradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, models.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Insufficient balance"})
	case errors.Is(err, models.ErrInsufficientHoldings):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Insufficient holdings"})
	case errors.Is(err, models.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": "Trade conflicted with a concurrent order, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}
