package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSeed_ProvisionsAccounts(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	err := Seed(ctx, st, []SeedAccount{
		{Username: "demo", Balance: decimal.NewFromInt(10000)},
		{Username: "demo2", Balance: decimal.NewFromFloat(2500.50)},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	a, err := st.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("first account missing: %v", err)
	}
	if a.Username != "demo" || !a.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("first account %+v", a)
	}

	b, err := st.GetAccount(ctx, 2)
	if err != nil {
		t.Fatalf("second account missing: %v", err)
	}
	if !b.Balance.Equal(decimal.NewFromFloat(2500.50)) {
		t.Errorf("second account balance %s, want 2500.5", b.Balance)
	}
}

func TestSeed_Empty(t *testing.T) {
	if err := Seed(context.Background(), NewMemoryStore(), nil); err != nil {
		t.Fatalf("seeding nothing should succeed: %v", err)
	}
}
