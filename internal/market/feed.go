// Package market simulates live prices as a random walk around each stock's
// base price. It is display data only; settlements trust the price the caller
// supplies (optionally bounds-checked against this feed).
package market

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/models"
)

// ErrUnknownSymbol is returned for quotes on symbols not in the catalog.
var ErrUnknownSymbol = errors.New("unknown symbol")

// maxSwing is the total width of the random walk, as a fraction of the base
// price (2% → quotes stay within ±1% of base).
var maxSwing = decimal.NewFromFloat(0.02)

// Feed produces simulated quotes. The random source and clock are injected
// so tests can pin the walk.
type Feed struct {
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	stocks []models.Stock
	index  map[string]int
}

// NewFeed creates a Feed over the given catalog. A nil rng gets seeded from
// the wall clock.
func NewFeed(stocks []models.Stock, rng *rand.Rand) *Feed {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	index := make(map[string]int, len(stocks))
	for i, s := range stocks {
		index[s.Symbol] = i
	}

	return &Feed{
		rng:    rng,
		now:    time.Now,
		stocks: stocks,
		index:  index,
	}
}

// Quote returns a simulated live price for one symbol.
func (f *Feed) Quote(symbol string) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[symbol]
	if !ok {
		return models.Quote{}, ErrUnknownSymbol
	}
	return f.quote(f.stocks[i]), nil
}

// Quotes returns simulated live prices for the whole catalog, in catalog
// order.
func (f *Feed) Quotes() []models.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()

	quotes := make([]models.Quote, len(f.stocks))
	for i, s := range f.stocks {
		quotes[i] = f.quote(s)
	}
	return quotes
}

// Symbols returns the catalog's symbols in order.
func (f *Feed) Symbols() []string {
	symbols := make([]string, len(f.stocks))
	for i, s := range f.stocks {
		symbols[i] = s.Symbol
	}
	return symbols
}

// quote derives one price tick: base plus a uniform swing of at most ±1% of
// base, rounded to cents. Caller holds f.mu.
func (f *Feed) quote(s models.Stock) models.Quote {
	offset := decimal.NewFromFloat(f.rng.Float64() - 0.5)
	change := s.BasePrice.Mul(maxSwing).Mul(offset)

	price := s.BasePrice.Add(change).Round(2)
	changePct := change.Div(s.BasePrice).Mul(decimal.NewFromInt(100)).Round(2)

	return models.Quote{
		Symbol:    s.Symbol,
		Name:      s.Name,
		Price:     price,
		Change:    changePct,
		Sector:    s.Sector,
		Timestamp: f.now(),
	}
}

// DefaultStocks is the built-in catalog used when the configuration does not
// supply one.
func DefaultStocks() []models.Stock {
	return []models.Stock{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", BasePrice: decimal.NewFromInt(150)},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Sector: "Technology", BasePrice: decimal.NewFromInt(140)},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Sector: "Technology", BasePrice: decimal.NewFromInt(380)},
		{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", BasePrice: decimal.NewFromInt(250)},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", Sector: "Consumer", BasePrice: decimal.NewFromInt(180)},
	}
}
