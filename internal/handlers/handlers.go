// Package handlers wires the HTTP surface: trade placement, history,
// portfolio, the stock catalog, health, and the websocket price stream.
package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashrafr/papertrade/internal/market"
	"github.com/ashrafr/papertrade/internal/settlement"
	"github.com/ashrafr/papertrade/internal/store"
)

// Handlers carries the collaborators every route needs.
type Handlers struct {
	store          store.Store
	processor      *settlement.Processor
	feed           *market.Feed
	logger         *slog.Logger
	streamInterval time.Duration
}

// New creates the handler set.
func New(st store.Store, processor *settlement.Processor, feed *market.Feed, logger *slog.Logger, streamInterval time.Duration) *Handlers {
	if streamInterval <= 0 {
		streamInterval = time.Second
	}
	return &Handlers{
		store:          st,
		processor:      processor,
		feed:           feed,
		logger:         logger,
		streamInterval: streamInterval,
	}
}

// Register mounts all routes on the router.
func (h *Handlers) Register(r *gin.Engine) {
	r.Use(RequestLogger(h.logger))

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/stocks", h.ListStocks)

	authed := api.Group("", UserAuth())
	authed.POST("/trades/place", h.PlaceTrade)
	authed.GET("/trades/history", h.TradeHistory)
	authed.GET("/user/profile", h.Profile)

	r.GET("/ws/prices", h.StreamPrices)
}
