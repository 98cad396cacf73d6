package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ashrafr/papertrade/internal/config"
	"github.com/ashrafr/papertrade/internal/handlers"
	"github.com/ashrafr/papertrade/internal/market"
	"github.com/ashrafr/papertrade/internal/settlement"
	"github.com/ashrafr/papertrade/internal/store"
	"github.com/ashrafr/papertrade/internal/util"
)

func main() {
	// Load .env file if present; real env vars win either way.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	// Balances and prices are emitted as JSON numbers, matching the wire
	// contract.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store ready", slog.String("backend", cfg.Store.Backend))

	if len(cfg.Store.SeedAccounts) > 0 {
		seeds := make([]store.SeedAccount, 0, len(cfg.Store.SeedAccounts))
		for _, a := range cfg.Store.SeedAccounts {
			seeds = append(seeds, store.SeedAccount{
				Username: a.Username,
				Balance:  decimal.NewFromFloat(a.Balance),
			})
		}
		if err := store.Seed(ctx, st, seeds); err != nil {
			logger.Error("failed to seed accounts", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("accounts seeded", slog.Int("count", len(seeds)))
	}

	stocks := cfg.Market.Catalog()
	if len(stocks) == 0 {
		stocks = market.DefaultStocks()
	}
	var rng *rand.Rand
	if cfg.Market.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Market.Seed))
	}
	feed := market.NewFeed(stocks, rng)

	engine := settlement.NewEngine(st, logger)
	engine.SetMaxRetries(cfg.Trading.MaxRetries)
	if cfg.Trading.VerifyPrice {
		engine.SetPriceVerifier(feed, decimal.NewFromFloat(cfg.Trading.PriceTolerancePct))
	}

	processor := settlement.NewProcessor(engine, cfg.Trading.Workers, logger)
	processor.Start()
	defer processor.Stop()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	h := handlers.New(st, processor, feed, logger,
		time.Duration(cfg.Market.StreamIntervalSeconds)*time.Second)
	h.Register(router)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info("server starting", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		pg := cfg.Store.Postgres
		dsn := store.BuildDSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
		return store.OpenPostgres(ctx, dsn)
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.Store.SQLitePath)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
