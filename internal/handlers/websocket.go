package handlers

import (
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (for development and demo)
	},
}

// StreamPrices handles GET /ws/prices: pushes a simulated price tick for a
// random catalog symbol on every interval until the client goes away.
func (h *Handlers) StreamPrices(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	symbols := h.feed.Symbols()
	if len(symbols) == 0 {
		return
	}

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			symbol := symbols[rand.Intn(len(symbols))]
			quote, err := h.feed.Quote(symbol)
			if err != nil {
				continue
			}

			if err := conn.WriteJSON(quote); err != nil {
				h.logger.Debug("websocket client gone", slog.String("error", err.Error()))
				return
			}
		}
	}
}
