package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an executed order.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Valid reports whether the side is one of BUY or SELL.
func (s TradeSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Account represents a user in the system. Only the balance changes during a
// trading session; registration (out of scope here) sets the initial value.
type Account struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holding is a user's open position in one symbol. A holding with zero
// quantity is never persisted; it is deleted instead.
type Holding struct {
	UserID       int64           `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Trade is an immutable record of one executed order. Append-only; never
// mutated or deleted after creation.
type Trade struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Side        TradeSide       `json:"type"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Stock is a catalog entry for one tradeable symbol. BasePrice anchors the
// simulated market feed.
type Stock struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Sector    string          `json:"sector"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// Quote is a simulated live price for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`
	Sector    string          `json:"sector"`
	Timestamp time.Time       `json:"timestamp"`
}

// PlaceTradeRequest - what the client sends to place an order. The user comes
// from the authenticated request context, not the body.
type PlaceTradeRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Type     TradeSide       `json:"type" binding:"required"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ProfileResponse - account info plus open positions.
type ProfileResponse struct {
	User     Account   `json:"user"`
	Holdings []Holding `json:"holdings"`
}
