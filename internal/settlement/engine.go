// Package settlement turns trade intents into atomic balance, holding, and
// ledger mutations. This is the only part of the system with real invariants:
// the three effects of an accepted order are always observed together, and a
// rejected order leaves no trace.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
	"github.com/ashrafr/papertrade/internal/store"
)

// DefaultMaxRetries bounds how often a conflicted settlement is re-run before
// surfacing models.ErrConflict to the caller.
const DefaultMaxRetries = 3

// Order is a trade intent: who, what, which way, how much, at what price.
// The price is the execution price supplied by the caller.
type Order struct {
	UserID   int64
	Symbol   string
	Side     models.TradeSide
	Quantity int64
	Price    decimal.Decimal
}

// Result describes an accepted settlement: the ledger record ID, the new cash
// balance, and the resulting position. Holding is nil when the sell closed
// the position. Enough for a caller to update derived views without
// re-querying.
type Result struct {
	TradeID     int64
	Balance     decimal.Decimal
	Holding     *models.Holding
	TotalAmount decimal.Decimal
}

// Quoter supplies a live market quote, used for optional price verification.
type Quoter interface {
	Quote(symbol string) (models.Quote, error)
}

// Engine validates orders against account state and applies the three-way
// mutation (balance, holding, trade ledger) as one unit through the store's
// per-user transaction.
type Engine struct {
	store      store.Store
	logger     *slog.Logger
	maxRetries int

	// Optional price guard; nil quoter disables it.
	quoter    Quoter
	tolerance decimal.Decimal

	now func() time.Time
}

// NewEngine creates an Engine with the default retry bound.
func NewEngine(st store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:      st,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
}

// SetMaxRetries overrides the conflict retry bound.
func (e *Engine) SetMaxRetries(n int) {
	if n >= 0 {
		e.maxRetries = n
	}
}

// SetPriceVerifier enables rejection of caller-supplied prices that deviate
// more than tolerancePct percent from the live quote.
func (e *Engine) SetPriceVerifier(q Quoter, tolerancePct decimal.Decimal) {
	e.quoter = q
	e.tolerance = tolerancePct
}

// Settle validates the order and, if accepted, applies balance, holding, and
// ledger mutations atomically. Business rejections come back as the sentinel
// errors in the models package; conflicts are retried up to the bound before
// surfacing.
func (e *Engine) Settle(ctx context.Context, o Order) (*Result, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	total := o.Price.Mul(decimal.NewFromInt(o.Quantity))

	if e.quoter != nil {
		if err := e.verifyPrice(o); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		var res *Result
		err := e.store.InUserTx(ctx, o.UserID, func(tx store.Tx) error {
			r, err := e.apply(ctx, tx, o, total)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err == nil {
			return res, nil
		}

		if errors.Is(err, models.ErrConflict) {
			lastErr = err
			e.logger.Warn("settlement conflict, retrying",
				slog.Int64("user_id", o.UserID),
				slog.String("symbol", o.Symbol),
				slog.Int("attempt", attempt+1),
			)
			continue
		}

		if errors.Is(err, models.ErrStoreUnavailable) {
			// The store state is unknown at this point; this must not be
			// reported as a rejection. Log for reconciliation.
			e.logger.Error("settlement aborted, store state unknown",
				slog.Int64("user_id", o.UserID),
				slog.String("symbol", o.Symbol),
				slog.String("side", string(o.Side)),
				slog.Int64("quantity", o.Quantity),
				slog.String("price", o.Price.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	return nil, lastErr
}

// validate checks the order shape before any store access.
func (o Order) validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", models.ErrInvalidOrder)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: type must be BUY or SELL", models.ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", models.ErrInvalidOrder)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", models.ErrInvalidOrder)
	}
	return nil
}

// verifyPrice rejects orders whose caller-supplied price strays too far from
// the live quote.
func (e *Engine) verifyPrice(o Order) error {
	q, err := e.quoter.Quote(o.Symbol)
	if err != nil {
		return fmt.Errorf("%w: unknown symbol %s", models.ErrInvalidOrder, o.Symbol)
	}

	deviation := o.Price.Sub(q.Price).Abs().Div(q.Price).Mul(decimal.NewFromInt(100))
	if deviation.GreaterThan(e.tolerance) {
		return fmt.Errorf("%w: price %s deviates %s%% from market price %s",
			models.ErrInvalidOrder, o.Price, deviation.Round(2), q.Price)
	}
	return nil
}

// apply runs the validate-then-commit sequence inside the transaction.
func (e *Engine) apply(ctx context.Context, tx store.Tx, o Order, total decimal.Decimal) (*Result, error) {
	switch o.Side {
	case models.SideBuy:
		return e.buy(ctx, tx, o, total)
	case models.SideSell:
		return e.sell(ctx, tx, o, total)
	default:
		return nil, fmt.Errorf("%w: type must be BUY or SELL", models.ErrInvalidOrder)
	}
}

func (e *Engine) buy(ctx context.Context, tx store.Tx, o Order, total decimal.Decimal) (*Result, error) {
	balance, err := tx.GetBalance(ctx, o.UserID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(total) {
		return nil, models.ErrInsufficientFunds
	}

	newBalance, err := tx.AdjustBalance(ctx, o.UserID, total.Neg())
	if err != nil {
		return nil, err
	}

	existing, err := tx.GetHolding(ctx, o.UserID, o.Symbol)
	if err != nil {
		return nil, err
	}

	holding := models.Holding{
		UserID:       o.UserID,
		Symbol:       o.Symbol,
		Quantity:     o.Quantity,
		AveragePrice: o.Price,
	}
	if existing != nil {
		// Weighted-average cost basis over currently-held shares.
		newQuantity := existing.Quantity + o.Quantity
		prevCost := existing.AveragePrice.Mul(decimal.NewFromInt(existing.Quantity))
		holding.Quantity = newQuantity
		holding.AveragePrice = prevCost.Add(total).Div(decimal.NewFromInt(newQuantity))
	}
	if err := tx.UpsertHolding(ctx, &holding); err != nil {
		return nil, err
	}

	tradeID, err := tx.AppendTrade(ctx, &models.Trade{
		UserID:      o.UserID,
		Symbol:      o.Symbol,
		Side:        models.SideBuy,
		Quantity:    o.Quantity,
		Price:       o.Price,
		TotalAmount: total,
		Timestamp:   e.now(),
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		TradeID:     tradeID,
		Balance:     newBalance,
		Holding:     &holding,
		TotalAmount: total,
	}, nil
}

func (e *Engine) sell(ctx context.Context, tx store.Tx, o Order, total decimal.Decimal) (*Result, error) {
	// Read the account before the holding: an unknown user surfaces as such,
	// and both sides lock the account row first.
	if _, err := tx.GetBalance(ctx, o.UserID); err != nil {
		return nil, err
	}

	existing, err := tx.GetHolding(ctx, o.UserID, o.Symbol)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Quantity < o.Quantity {
		return nil, models.ErrInsufficientHoldings
	}

	newBalance, err := tx.AdjustBalance(ctx, o.UserID, total)
	if err != nil {
		return nil, err
	}

	var holding *models.Holding
	newQuantity := existing.Quantity - o.Quantity
	if newQuantity == 0 {
		if err := tx.DeleteHolding(ctx, o.UserID, o.Symbol); err != nil {
			return nil, err
		}
	} else {
		// Partial sell: the average cost of the remaining shares is
		// unchanged.
		existing.Quantity = newQuantity
		if err := tx.UpsertHolding(ctx, existing); err != nil {
			return nil, err
		}
		holding = existing
	}

	tradeID, err := tx.AppendTrade(ctx, &models.Trade{
		UserID:      o.UserID,
		Symbol:      o.Symbol,
		Side:        models.SideSell,
		Quantity:    o.Quantity,
		Price:       o.Price,
		TotalAmount: total,
		Timestamp:   e.now(),
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		TradeID:     tradeID,
		Balance:     newBalance,
		Holding:     holding,
		TotalAmount: total,
	}, nil
}
