// Command paperdesk runs the paper trading dashboard: a simulated portfolio
// over live quotes with a web UI.
//
// Usage:
//
//	paperdesk --config config.yaml
//	paperdesk setup   (interactive wizard, then starts with the generated config)
//	paperdesk         (CLI flags with defaults)
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paperdesk/paperdesk/config"
	"github.com/paperdesk/paperdesk/internal/desk"
	"github.com/paperdesk/paperdesk/internal/ledger"
	"github.com/paperdesk/paperdesk/internal/marketclock"
	"github.com/paperdesk/paperdesk/internal/quotes"
	"github.com/paperdesk/paperdesk/internal/setup"
	"github.com/paperdesk/paperdesk/internal/storage/snapshots"
	"github.com/paperdesk/paperdesk/internal/storage/state"
	"github.com/paperdesk/paperdesk/internal/storage/trades"
	"github.com/paperdesk/paperdesk/internal/watchlist"
	"github.com/paperdesk/paperdesk/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !isShutdown(err) {
		logger.Fatal("paperdesk stopped", zap.Error(err))
	}
	logger.Info("paperdesk stopped")
}

func loadConfig() (config.Config, error) {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			return config.Config{}, err
		}
		return config.FromFile("config.gen.yaml")
	}
	return config.Get()
}

func run(cfg config.Config, logger *zap.Logger) error {
	store, err := state.NewStore(filepath.Join(cfg.DataDir, "state"), logger)
	if err != nil {
		return err
	}
	if cfg.StartingBalance.IsPositive() {
		err = store.InitializeWithBalance(cfg.StartingBalance)
	} else {
		err = store.Initialize()
	}
	if err != nil {
		return err
	}

	tradeStore, err := trades.NewWALStore(filepath.Join(cfg.DataDir, "trades"))
	if err != nil {
		return err
	}
	defer tradeStore.Close()

	snapshotStore, err := snapshots.NewWALStore(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		return err
	}
	defer snapshotStore.Close()

	clock, err := marketclock.ForMarket(cfg.Market)
	if err != nil {
		return err
	}

	led := ledger.New(store.LoadPortfolio(), store, tradeStore, logger)
	watch := watchlist.New(store.LoadWatchlist(), store, logger)
	quoteClient := quotes.NewClient(cfg.QuoteAPIURL)

	var feed *quotes.Stream
	if cfg.FeedURL != "" {
		feed = quotes.NewStream(cfg.FeedURL, logger)
	}

	deps := desk.Deps{
		Ledger:          led,
		Watchlist:       watch,
		Clock:           clock,
		Quotes:          quoteClient,
		History:         tradeStore,
		Snapshots:       snapshotStore,
		Logger:          logger,
		RefreshInterval: cfg.RefreshInterval,
	}
	if feed != nil {
		deps.Feed = feed
	}

	d, err := desk.New(deps)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg.ListenAddr, d, quoteClient, tradeStore, snapshotStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("paperdesk starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("market", cfg.Market),
		zap.String("quote_api", cfg.QuoteAPIURL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })
	if feed != nil {
		g.Go(func() error { return feed.Run(gctx) })
	}

	return g.Wait()
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
