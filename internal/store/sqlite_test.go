package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	userID, err := st.CreateAccount(ctx, "alice", decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	err = st.InUserTx(ctx, userID, func(tx Tx) error {
		balance, err := tx.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		if !balance.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("balance %s, want 10000", balance)
		}

		newBal, err := tx.AdjustBalance(ctx, userID, decimal.NewFromInt(-1500))
		if err != nil {
			return err
		}
		if !newBal.Equal(decimal.NewFromInt(8500)) {
			t.Errorf("new balance %s, want 8500", newBal)
		}

		if err := tx.UpsertHolding(ctx, &models.Holding{
			UserID: userID, Symbol: "AAPL", Quantity: 10,
			AveragePrice: decimal.NewFromInt(150),
		}); err != nil {
			return err
		}

		_, err = tx.AppendTrade(ctx, &models.Trade{
			UserID: userID, Symbol: "AAPL", Side: models.SideBuy,
			Quantity: 10, Price: decimal.NewFromInt(150),
			TotalAmount: decimal.NewFromInt(1500),
		})
		return err
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	a, err := st.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !a.Balance.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("persisted balance %s, want 8500", a.Balance)
	}

	holdings, err := st.ListHoldings(ctx, userID)
	if err != nil {
		t.Fatalf("list holdings: %v", err)
	}
	if len(holdings) != 1 || holdings[0].Quantity != 10 || !holdings[0].AveragePrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("holdings %+v, want one AAPL x10 @150", holdings)
	}

	trades, err := st.ListTrades(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 1 || trades[0].Side != models.SideBuy || !trades[0].TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("trades %+v, want one BUY totalling 1500", trades)
	}
}

func TestSQLiteStore_TxRollsBackOnError(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	userID, err := st.CreateAccount(ctx, "bob", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	boom := errors.New("boom")
	err = st.InUserTx(ctx, userID, func(tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, userID, decimal.NewFromInt(-200)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	a, err := st.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !a.Balance.Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance leaked from aborted tx: %s", a.Balance)
	}
}

func TestSQLiteStore_DeleteHolding(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	userID, err := st.CreateAccount(ctx, "carol", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	err = st.InUserTx(ctx, userID, func(tx Tx) error {
		return tx.UpsertHolding(ctx, &models.Holding{
			UserID: userID, Symbol: "TSLA", Quantity: 3,
			AveragePrice: decimal.NewFromInt(250),
		})
	})
	if err != nil {
		t.Fatalf("setup tx: %v", err)
	}

	err = st.InUserTx(ctx, userID, func(tx Tx) error {
		h, err := tx.GetHolding(ctx, userID, "TSLA")
		if err != nil {
			return err
		}
		if h == nil || h.Quantity != 3 {
			t.Errorf("holding %+v, want TSLA x3", h)
		}
		return tx.DeleteHolding(ctx, userID, "TSLA")
	})
	if err != nil {
		t.Fatalf("delete tx: %v", err)
	}

	holdings, err := st.ListHoldings(ctx, userID)
	if err != nil {
		t.Fatalf("list holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("expected no holdings, got %+v", holdings)
	}

	err = st.InUserTx(ctx, userID, func(tx Tx) error {
		h, err := tx.GetHolding(ctx, userID, "TSLA")
		if err != nil {
			return err
		}
		if h != nil {
			t.Errorf("expected holding gone, got %+v", h)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify tx: %v", err)
	}
}

func TestSQLiteStore_UnknownAccount(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	if _, err := st.GetAccount(ctx, 42); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
