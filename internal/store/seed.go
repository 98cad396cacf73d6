package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SeedAccount describes one account to provision at startup.
type SeedAccount struct {
	Username string
	Balance  decimal.Decimal
}

// Seed provisions the given accounts. Each call creates new rows, so seeding
// is meant for the memory backend and fresh embedded databases.
func Seed(ctx context.Context, st Store, accounts []SeedAccount) error {
	for _, a := range accounts {
		if _, err := st.CreateAccount(ctx, a.Username, a.Balance); err != nil {
			return fmt.Errorf("seed account %q: %w", a.Username, err)
		}
	}
	return nil
}
