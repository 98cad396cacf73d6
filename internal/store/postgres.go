package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on PostgreSQL. Per-user atomicity comes from
// row locks: each transaction takes FOR UPDATE on the account row (and the
// holding row on sells) before validating, so concurrent settlements for the
// same user serialize inside the database.
type PostgresStore struct {
	db *sql.DB
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         BIGSERIAL PRIMARY KEY,
    username   TEXT      NOT NULL UNIQUE,
    balance    NUMERIC   NOT NULL CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS holdings (
    user_id       BIGINT  NOT NULL REFERENCES accounts(id),
    symbol        TEXT    NOT NULL,
    quantity      BIGINT  NOT NULL CHECK (quantity > 0),
    average_price NUMERIC NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
    id           BIGSERIAL PRIMARY KEY,
    user_id      BIGINT  NOT NULL REFERENCES accounts(id),
    symbol       TEXT    NOT NULL,
    side         TEXT    NOT NULL CHECK (side IN ('BUY', 'SELL')),
    quantity     BIGINT  NOT NULL CHECK (quantity > 0),
    price        NUMERIC NOT NULL,
    total_amount NUMERIC NOT NULL,
    executed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_user_time ON trades (user_id, executed_at DESC);
`

// OpenPostgres connects to PostgreSQL, verifies the connection, and creates
// the schema if it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// BuildDSN assembles a lib/pq connection string from its parts.
func BuildDSN(host, port, user, password, dbname, sslmode string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)
}

// InUserTx runs fn inside a database transaction. Rollback on any error;
// serialization failures and deadlocks map to models.ErrConflict so the
// engine can retry.
func (s *PostgresStore) InUserTx(ctx context.Context, userID int64, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyPG(err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyPG(err)
	}
	return nil
}

// GetAccount returns the account row for a user.
func (s *PostgresStore) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, balance, created_at FROM accounts WHERE id = $1`,
		userID,
	).Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, classifyPG(err)
	}
	return &a, nil
}

// ListHoldings returns all open positions for a user, ordered by symbol.
func (s *PostgresStore) ListHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, symbol, quantity, average_price, updated_at
        FROM holdings
        WHERE user_id = $1
        ORDER BY symbol`,
		userID,
	)
	if err != nil {
		return nil, classifyPG(err)
	}
	defer rows.Close()

	holdings := make([]models.Holding, 0)
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt); err != nil {
			return nil, classifyPG(err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ListTrades returns the user's most recent trades, newest first.
func (s *PostgresStore) ListTrades(ctx context.Context, userID int64, limit int) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, symbol, side, quantity, price, total_amount, executed_at
        FROM trades
        WHERE user_id = $1
        ORDER BY executed_at DESC
        LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, classifyPG(err)
	}
	defer rows.Close()

	trades := make([]models.Trade, 0)
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Side, &t.Quantity,
			&t.Price, &t.TotalAmount, &t.Timestamp); err != nil {
			return nil, classifyPG(err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CreateAccount provisions a user with an initial balance.
func (s *PostgresStore) CreateAccount(ctx context.Context, username string, balance decimal.Decimal) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (username, balance) VALUES ($1, $2) RETURNING id`,
		username, balance,
	).Scan(&id)
	if err != nil {
		return 0, classifyPG(err)
	}
	return id, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// pgTx implements Tx on a database transaction.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, classifyPG(err)
	}
	return balance, nil
}

func (t *pgTx) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		delta, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, classifyPG(err)
	}
	return balance, nil
}

func (t *pgTx) GetHolding(ctx context.Context, userID int64, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := t.tx.QueryRowContext(ctx, `
        SELECT user_id, symbol, quantity, average_price, updated_at
        FROM holdings
        WHERE user_id = $1 AND symbol = $2
        FOR UPDATE`,
		userID, symbol,
	).Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPG(err)
	}
	return &h, nil
}

func (t *pgTx) UpsertHolding(ctx context.Context, h *models.Holding) error {
	_, err := t.tx.ExecContext(ctx, `
        INSERT INTO holdings (user_id, symbol, quantity, average_price, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (user_id, symbol)
        DO UPDATE SET
            quantity = EXCLUDED.quantity,
            average_price = EXCLUDED.average_price,
            updated_at = NOW()`,
		h.UserID, h.Symbol, h.Quantity, h.AveragePrice,
	)
	if err != nil {
		return classifyPG(err)
	}
	return nil
}

func (t *pgTx) DeleteHolding(ctx context.Context, userID int64, symbol string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`,
		userID, symbol,
	)
	if err != nil {
		return classifyPG(err)
	}
	return nil
}

func (t *pgTx) AppendTrade(ctx context.Context, tr *models.Trade) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
        INSERT INTO trades (user_id, symbol, side, quantity, price, total_amount, executed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`,
		tr.UserID, tr.Symbol, tr.Side, tr.Quantity, tr.Price, tr.TotalAmount, tr.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, classifyPG(err)
	}
	return id, nil
}

// classifyPG maps driver errors onto the settlement taxonomy. Serialization
// failures (40001) and deadlocks (40P01) are retryable conflicts; everything
// else is a store failure, which must never look like a trade rejection.
func classifyPG(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}
