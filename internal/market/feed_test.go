package market

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

func testCatalog() []models.Stock {
	return []models.Stock{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", BasePrice: decimal.NewFromInt(150)},
		{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", BasePrice: decimal.NewFromInt(250)},
	}
}

func TestFeed_DeterministicWithSeed(t *testing.T) {
	a := NewFeed(testCatalog(), rand.New(rand.NewSource(42)))
	b := NewFeed(testCatalog(), rand.New(rand.NewSource(42)))

	for i := 0; i < 20; i++ {
		qa, err := a.Quote("AAPL")
		if err != nil {
			t.Fatalf("quote a: %v", err)
		}
		qb, err := b.Quote("AAPL")
		if err != nil {
			t.Fatalf("quote b: %v", err)
		}
		if !qa.Price.Equal(qb.Price) || !qa.Change.Equal(qb.Change) {
			t.Fatalf("tick %d diverged: %s/%s vs %s/%s", i, qa.Price, qa.Change, qb.Price, qb.Change)
		}
	}
}

func TestFeed_QuoteStaysWithinSwing(t *testing.T) {
	f := NewFeed(testCatalog(), rand.New(rand.NewSource(7)))

	base := decimal.NewFromInt(150)
	// ±1% of base, plus a cent of rounding slack.
	bound := base.Mul(decimal.NewFromFloat(0.01)).Add(decimal.NewFromFloat(0.01))

	for i := 0; i < 500; i++ {
		q, err := f.Quote("AAPL")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if q.Price.Sub(base).Abs().GreaterThan(bound) {
			t.Fatalf("price %s outside ±1%% of base %s", q.Price, base)
		}
		if q.Price.Exponent() < -2 {
			t.Fatalf("price %s has more than 2 decimal places", q.Price)
		}
		if q.Change.Abs().GreaterThan(decimal.NewFromInt(1)) {
			t.Fatalf("change %s%% outside ±1%%", q.Change)
		}
	}
}

func TestFeed_UnknownSymbol(t *testing.T) {
	f := NewFeed(testCatalog(), rand.New(rand.NewSource(1)))

	_, err := f.Quote("NOPE")
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestFeed_QuotesCatalogOrder(t *testing.T) {
	f := NewFeed(testCatalog(), rand.New(rand.NewSource(1)))

	quotes := f.Quotes()
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Symbol != "AAPL" || quotes[1].Symbol != "TSLA" {
		t.Errorf("expected catalog order AAPL, TSLA; got %s, %s", quotes[0].Symbol, quotes[1].Symbol)
	}
	if quotes[0].Name != "Apple Inc." || quotes[0].Sector != "Technology" {
		t.Errorf("catalog fields not carried through: %+v", quotes[0])
	}
}

func TestDefaultStocks(t *testing.T) {
	stocks := DefaultStocks()
	if len(stocks) == 0 {
		t.Fatal("expected a non-empty default catalog")
	}
	seen := make(map[string]bool)
	for _, s := range stocks {
		if s.Symbol == "" || !s.BasePrice.IsPositive() {
			t.Errorf("bad catalog entry: %+v", s)
		}
		if seen[s.Symbol] {
			t.Errorf("duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
	}
}
