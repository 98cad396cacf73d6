// Package store defines the persistence contracts the settlement engine
// depends on, plus Postgres, SQLite, and in-memory implementations.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

// Tx is the transactional view handed to a settlement callback. Every
// mutation made through a Tx commits or rolls back as one unit, isolated from
// other settlements for the same user.
type Tx interface {
	// GetBalance returns the user's cash balance, locked for the duration of
	// the transaction. Returns models.ErrAccountNotFound for unknown users.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// AdjustBalance applies a signed delta to the balance and returns the new
	// value.
	AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error)

	// GetHolding returns the user's position for symbol, or nil when absent.
	GetHolding(ctx context.Context, userID int64, symbol string) (*models.Holding, error)

	// UpsertHolding creates or replaces the position for (user, symbol).
	UpsertHolding(ctx context.Context, h *models.Holding) error

	// DeleteHolding removes the position for (user, symbol).
	DeleteHolding(ctx context.Context, userID int64, symbol string) error

	// AppendTrade inserts an immutable trade record and returns its ID.
	AppendTrade(ctx context.Context, t *models.Trade) (int64, error)
}

// Store is the full persistence boundary. InUserTx provides the per-user
// atomic unit the settlement engine requires; the remaining methods are
// weaker read paths for display data and provisioning.
type Store interface {
	// InUserTx runs fn inside a transaction serialized against all other
	// InUserTx calls for the same user. If fn returns an error, nothing fn
	// did through the Tx is persisted. A serialization failure surfaces as
	// models.ErrConflict so the caller can retry.
	InUserTx(ctx context.Context, userID int64, fn func(tx Tx) error) error

	// GetAccount returns the account row for a user.
	GetAccount(ctx context.Context, userID int64) (*models.Account, error)

	// ListHoldings returns all open positions for a user, ordered by symbol.
	ListHoldings(ctx context.Context, userID int64) ([]models.Holding, error)

	// ListTrades returns the user's most recent trades, newest first, up to
	// limit.
	ListTrades(ctx context.Context, userID int64, limit int) ([]models.Trade, error)

	// CreateAccount provisions a user with an initial balance and returns the
	// new user ID.
	CreateAccount(ctx context.Context, username string, balance decimal.Decimal) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
