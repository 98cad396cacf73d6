package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ashrafr/papertrade/internal/models"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on an embedded SQLite database (pure-Go
// driver). SQLite has no row-level locking, so per-user serializability comes
// from Go-side user locks taken before each transaction.
type SQLiteStore struct {
	db    *sql.DB
	locks *userLocks
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    username   TEXT    NOT NULL UNIQUE,
    balance    TEXT    NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    user_id       INTEGER NOT NULL,
    symbol        TEXT    NOT NULL,
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    average_price TEXT    NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      INTEGER NOT NULL,
    symbol       TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    quantity     INTEGER NOT NULL,
    price        TEXT    NOT NULL,
    total_amount TEXT    NOT NULL,
    executed_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user_time ON trades (user_id, executed_at DESC);
`

// OpenSQLite opens (or creates) a SQLite database at dbPath and bootstraps
// the schema.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent settlements; the
	// user locks already serialize writes per user.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, locks: newUserLocks()}, nil
}

// InUserTx serializes on the user's lock, then runs fn in a database
// transaction.
func (s *SQLiteStore) InUserTx(ctx context.Context, userID int64, fn func(tx Tx) error) error {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLite(err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, now: time.Now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifySQLite(err)
	}
	return nil
}

// GetAccount returns the account row for a user.
func (s *SQLiteStore) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, balance, created_at FROM accounts WHERE id = ?`,
		userID,
	).Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, classifySQLite(err)
	}
	return &a, nil
}

// ListHoldings returns all open positions for a user, ordered by symbol.
func (s *SQLiteStore) ListHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, symbol, quantity, average_price, updated_at
        FROM holdings
        WHERE user_id = ?
        ORDER BY symbol`,
		userID,
	)
	if err != nil {
		return nil, classifySQLite(err)
	}
	defer rows.Close()

	holdings := make([]models.Holding, 0)
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt); err != nil {
			return nil, classifySQLite(err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ListTrades returns the user's most recent trades, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, userID int64, limit int) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, symbol, side, quantity, price, total_amount, executed_at
        FROM trades
        WHERE user_id = ?
        ORDER BY executed_at DESC, id DESC
        LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, classifySQLite(err)
	}
	defer rows.Close()

	trades := make([]models.Trade, 0)
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Side, &t.Quantity,
			&t.Price, &t.TotalAmount, &t.Timestamp); err != nil {
			return nil, classifySQLite(err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CreateAccount provisions a user with an initial balance.
func (s *SQLiteStore) CreateAccount(ctx context.Context, username string, balance decimal.Decimal) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, balance, created_at) VALUES (?, ?, ?)`,
		username, balance, time.Now(),
	)
	if err != nil {
		return 0, classifySQLite(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classifySQLite(err)
	}
	return id, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTx implements Tx on a database transaction.
type sqliteTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqliteTx) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ?`,
		userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, classifySQLite(err)
	}
	return balance, nil
}

func (t *sqliteTx) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	cur, err := t.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	next := cur.Add(delta)
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`,
		next, userID,
	); err != nil {
		return decimal.Decimal{}, classifySQLite(err)
	}
	return next, nil
}

func (t *sqliteTx) GetHolding(ctx context.Context, userID int64, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := t.tx.QueryRowContext(ctx, `
        SELECT user_id, symbol, quantity, average_price, updated_at
        FROM holdings
        WHERE user_id = ? AND symbol = ?`,
		userID, symbol,
	).Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifySQLite(err)
	}
	return &h, nil
}

func (t *sqliteTx) UpsertHolding(ctx context.Context, h *models.Holding) error {
	_, err := t.tx.ExecContext(ctx, `
        INSERT INTO holdings (user_id, symbol, quantity, average_price, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_id, symbol)
        DO UPDATE SET
            quantity = excluded.quantity,
            average_price = excluded.average_price,
            updated_at = excluded.updated_at`,
		h.UserID, h.Symbol, h.Quantity, h.AveragePrice, t.now(),
	)
	if err != nil {
		return classifySQLite(err)
	}
	return nil
}

func (t *sqliteTx) DeleteHolding(ctx context.Context, userID int64, symbol string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE user_id = ? AND symbol = ?`,
		userID, symbol,
	)
	if err != nil {
		return classifySQLite(err)
	}
	return nil
}

func (t *sqliteTx) AppendTrade(ctx context.Context, tr *models.Trade) (int64, error) {
	ts := tr.Timestamp
	if ts.IsZero() {
		ts = t.now()
	}

	res, err := t.tx.ExecContext(ctx, `
        INSERT INTO trades (user_id, symbol, side, quantity, price, total_amount, executed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.UserID, tr.Symbol, tr.Side, tr.Quantity, tr.Price, tr.TotalAmount, ts,
	)
	if err != nil {
		return 0, classifySQLite(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classifySQLite(err)
	}
	return id, nil
}

// classifySQLite maps driver errors onto the settlement taxonomy. Busy and
// locked databases are retryable conflicts; everything else is a store
// failure.
func classifySQLite(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}
