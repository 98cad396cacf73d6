package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListStocks handles GET /api/stocks: the catalog with simulated live
// prices. Each request gets a fresh tick of the random walk.
func (h *Handlers) ListStocks(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Quotes())
}
