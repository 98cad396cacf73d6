package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a thread-safe in-memory Store. It backs tests and the
// zero-dependency demo configuration. Transactions stage their writes and
// apply them on commit, so a failed settlement leaves no partial state.
type MemoryStore struct {
	mu    sync.RWMutex
	locks *userLocks

	nextUserID  atomic.Int64
	nextTradeID atomic.Int64

	accounts map[int64]*models.Account
	holdings map[int64]map[string]*models.Holding
	trades   map[int64][]models.Trade

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    newUserLocks(),
		accounts: make(map[int64]*models.Account),
		holdings: make(map[int64]map[string]*models.Holding),
		trades:   make(map[int64][]models.Trade),
		now:      time.Now,
	}
}

// InUserTx serializes on the user's lock, runs fn against a staged view, and
// commits the staged writes only when fn succeeds.
func (s *MemoryStore) InUserTx(ctx context.Context, userID int64, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	tx := &memTx{
		s:        s,
		userID:   userID,
		holdings: make(map[string]*models.Holding),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// GetAccount returns a copy of the account row.
func (s *MemoryStore) GetAccount(_ context.Context, userID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// ListHoldings returns copies of the user's positions, ordered by symbol.
func (s *MemoryStore) ListHoldings(_ context.Context, userID int64) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Holding, 0, len(s.holdings[userID]))
	for _, h := range s.holdings[userID] {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// ListTrades returns the user's trades newest first, up to limit.
func (s *MemoryStore) ListTrades(_ context.Context, userID int64, limit int) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[userID]
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}

	// Stored chronologically; return a newest-first copy.
	out := make([]models.Trade, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// CreateAccount provisions a user with an initial balance.
func (s *MemoryStore) CreateAccount(_ context.Context, username string, balance decimal.Decimal) (int64, error) {
	id := s.nextUserID.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[id] = &models.Account{
		ID:        id,
		Username:  username,
		Balance:   balance,
		CreatedAt: s.now(),
	}
	return id, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// memTx stages writes for one settlement. A staged holding entry with a nil
// value records a delete.
type memTx struct {
	s      *MemoryStore
	userID int64

	balance  *decimal.Decimal
	holdings map[string]*models.Holding
	trades   []models.Trade
}

func (tx *memTx) GetBalance(_ context.Context, userID int64) (decimal.Decimal, error) {
	if tx.balance != nil {
		return *tx.balance, nil
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	a, ok := tx.s.accounts[userID]
	if !ok {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	return a.Balance, nil
}

func (tx *memTx) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	cur, err := tx.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	next := cur.Add(delta)
	tx.balance = &next
	return next, nil
}

func (tx *memTx) GetHolding(_ context.Context, userID int64, symbol string) (*models.Holding, error) {
	if h, ok := tx.holdings[symbol]; ok {
		if h == nil {
			return nil, nil
		}
		cp := *h
		return &cp, nil
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	h, ok := tx.s.holdings[userID][symbol]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (tx *memTx) UpsertHolding(_ context.Context, h *models.Holding) error {
	cp := *h
	cp.UpdatedAt = tx.s.now()
	tx.holdings[h.Symbol] = &cp
	return nil
}

func (tx *memTx) DeleteHolding(_ context.Context, _ int64, symbol string) error {
	tx.holdings[symbol] = nil
	return nil
}

func (tx *memTx) AppendTrade(_ context.Context, t *models.Trade) (int64, error) {
	cp := *t
	cp.ID = tx.s.nextTradeID.Add(1)
	if cp.Timestamp.IsZero() {
		cp.Timestamp = tx.s.now()
	}
	tx.trades = append(tx.trades, cp)
	return cp.ID, nil
}

// commit applies every staged write under the store lock.
func (tx *memTx) commit() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	if tx.balance != nil {
		if a, ok := tx.s.accounts[tx.userID]; ok {
			a.Balance = *tx.balance
		}
	}

	for symbol, h := range tx.holdings {
		if h == nil {
			delete(tx.s.holdings[tx.userID], symbol)
			continue
		}
		if tx.s.holdings[tx.userID] == nil {
			tx.s.holdings[tx.userID] = make(map[string]*models.Holding)
		}
		tx.s.holdings[tx.userID][symbol] = h
	}

	tx.s.trades[tx.userID] = append(tx.s.trades[tx.userID], tx.trades...)
}
