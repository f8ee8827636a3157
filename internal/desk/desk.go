// Package desk wires the ledger, watchlist, market clock and quote sources
// into one trading surface. All mutations funnel through it.
package desk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paperdesk/paperdesk/internal/domain"
	"github.com/paperdesk/paperdesk/internal/ledger"
	"github.com/paperdesk/paperdesk/internal/marketclock"
	"github.com/paperdesk/paperdesk/internal/quotes"
	"github.com/paperdesk/paperdesk/internal/storage/state"
	"github.com/paperdesk/paperdesk/internal/watchlist"
)

const defaultRefreshInterval = 5 * time.Second

// MarketClosedError rejects a trade placed outside trading hours and tells
// the caller when the market opens next.
type MarketClosedError struct {
	Market   string
	NextOpen time.Time
}

func (e *MarketClosedError) Error() string {
	return fmt.Sprintf("market %s is closed, next open %s", e.Market, e.NextOpen.Format(time.RFC3339))
}

type quoteGetter interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type tickSource interface {
	Ticks() <-chan domain.Tick
	SetSymbols(symbols []string)
}

type historyResetter interface {
	Reset() error
}

type snapshotWriter interface {
	Append(domain.PortfolioSnapshot) error
}

// Deps collects the desk's collaborators.
type Deps struct {
	Ledger    *ledger.Ledger
	Watchlist *watchlist.Watchlist
	Clock     marketclock.Schedule
	Quotes    quoteGetter
	Feed      tickSource // optional
	History   historyResetter
	Snapshots snapshotWriter
	Logger    *zap.Logger

	RefreshInterval time.Duration
}

// Desk is the single owner of all portfolio mutations.
type Desk struct {
	ledger    *ledger.Ledger
	watch     *watchlist.Watchlist
	clock     marketclock.Schedule
	quotes    quoteGetter
	feed      tickSource
	history   historyResetter
	snapshots snapshotWriter
	logger    *zap.Logger

	refreshEvery time.Duration
	now          func() time.Time

	mu         sync.RWMutex
	quoteCache map[string]domain.Quote
}

// New assembles a desk. Ledger, Watchlist and Quotes are required.
func New(deps Deps) (*Desk, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Watchlist == nil {
		return nil, errors.New("watchlist is required")
	}
	if deps.Quotes == nil {
		return nil, errors.New("quote client is required")
	}
	if deps.Clock.Location == nil {
		return nil, errors.New("market schedule is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.RefreshInterval <= 0 {
		deps.RefreshInterval = defaultRefreshInterval
	}

	return &Desk{
		ledger:       deps.Ledger,
		watch:        deps.Watchlist,
		clock:        deps.Clock,
		quotes:       deps.Quotes,
		feed:         deps.Feed,
		history:      deps.History,
		snapshots:    deps.Snapshots,
		logger:       deps.Logger,
		refreshEvery: deps.RefreshInterval,
		now:          time.Now,
		quoteCache:   make(map[string]domain.Quote),
	}, nil
}

// SetClock overrides the time source, for tests.
func (d *Desk) SetClock(now func() time.Time) {
	d.now = now
}

// Buy fetches a fresh price and executes a market buy. Trades are rejected
// while the market is closed.
func (d *Desk) Buy(ctx context.Context, symbol string, quantity int64) (*domain.TradeRecord, error) {
	symbol = normalize(symbol)
	if err := d.checkMarketOpen(); err != nil {
		return nil, err
	}

	quote, err := d.executionQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	record, err := d.ledger.Buy(symbol, quote.Name, quantity, quote.Price)
	if err != nil {
		return nil, err
	}

	d.cacheQuote(*quote)
	d.writeSnapshot()
	return record, nil
}

// Sell fetches a fresh price and executes a market sell. Trades are rejected
// while the market is closed.
func (d *Desk) Sell(ctx context.Context, symbol string, quantity int64) (*domain.TradeRecord, error) {
	symbol = normalize(symbol)
	if err := d.checkMarketOpen(); err != nil {
		return nil, err
	}

	quote, err := d.executionQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	record, err := d.ledger.Sell(symbol, quantity, quote.Price)
	if err != nil {
		return nil, err
	}

	d.cacheQuote(*quote)
	d.writeSnapshot()
	return record, nil
}

// ToggleWatchlist flips tracking for a symbol and reports whether it is
// tracked afterwards.
func (d *Desk) ToggleWatchlist(symbol string) bool {
	present := d.watch.Toggle(symbol)
	d.syncFeed()
	return present
}

// Reset restores the seed portfolio and watchlist and clears the trade
// history.
func (d *Desk) Reset() error {
	d.ledger.Replace(state.DefaultPortfolio())
	d.watch.Replace(state.DefaultWatchlist())

	if d.history != nil {
		if err := d.history.Reset(); err != nil {
			return errors.Wrap(err, "reset trade history")
		}
	}

	d.mu.Lock()
	d.quoteCache = make(map[string]domain.Quote)
	d.mu.Unlock()

	d.syncFeed()
	d.writeSnapshot()
	d.logger.Info("portfolio reset to defaults")
	return nil
}

// Refresh pulls quotes for every held and watched symbol, re-marks the book
// and records a valuation snapshot. On partial upstream failure it applies
// what it got and returns the first error.
func (d *Desk) Refresh(ctx context.Context) error {
	symbols := d.trackedSymbols()
	if d.feed != nil {
		d.feed.SetSymbols(symbols)
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	var firstErr error
	for _, symbol := range symbols {
		quote, err := d.quotes.GetQuote(ctx, symbol)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			d.logger.Warn("quote refresh failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		d.cacheQuote(*quote)
		if quote.Price.IsPositive() {
			prices[symbol] = quote.Price
		}
	}

	if len(prices) > 0 {
		d.ledger.MarkToMarket(prices)
	}
	d.writeSnapshot()
	return firstErr
}

// Run refreshes on a fixed interval and folds in feed ticks until the
// context is cancelled.
func (d *Desk) Run(ctx context.Context) error {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("initial refresh incomplete", zap.Error(err))
	}

	ticker := time.NewTicker(d.refreshEvery)
	defer ticker.Stop()

	var ticks <-chan domain.Tick
	if d.feed != nil {
		ticks = d.feed.Ticks()
	}

	d.logger.Info("desk loop started", zap.Duration("refresh_interval", d.refreshEvery))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("desk loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("refresh incomplete", zap.Error(err))
			}
		case tick := <-ticks:
			d.applyTick(tick)
		}
	}
}

// applyTick updates the cached price for a tracked symbol and re-marks a
// held position. Unknown symbols are dropped.
func (d *Desk) applyTick(tick domain.Tick) {
	symbol := normalize(tick.Symbol)
	if !tick.Price.IsPositive() {
		return
	}

	held := false
	if _, ok := d.ledger.Snapshot().Positions[symbol]; ok {
		held = true
	}
	if !held && !d.watch.Contains(symbol) {
		return
	}

	d.mu.Lock()
	cached := d.quoteCache[symbol]
	cached.Symbol = symbol
	cached.Price = tick.Price
	d.quoteCache[symbol] = cached
	d.mu.Unlock()

	if held {
		d.ledger.MarkToMarket(map[string]decimal.Decimal{symbol: tick.Price})
		d.writeSnapshot()
	}
}

// Portfolio returns a deep copy of the current book.
func (d *Desk) Portfolio() *domain.Portfolio {
	return d.ledger.Snapshot()
}

// Watchlist returns the tracked symbols, sorted.
func (d *Desk) Watchlist() []string {
	return d.watch.Symbols()
}

// Quotes returns a copy of the last quote seen per symbol.
func (d *Desk) Quotes() map[string]domain.Quote {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]domain.Quote, len(d.quoteCache))
	for symbol, quote := range d.quoteCache {
		out[symbol] = quote
	}
	return out
}

// MarketStatus reports whether the configured market is open now, and when
// it opens next if not.
func (d *Desk) MarketStatus() (market string, open bool, nextOpen time.Time) {
	now := d.now()
	if d.clock.IsOpen(now) {
		return d.clock.Market, true, time.Time{}
	}
	return d.clock.Market, false, d.clock.NextOpen(now)
}

func (d *Desk) checkMarketOpen() error {
	now := d.now()
	if d.clock.IsOpen(now) {
		return nil
	}
	return &MarketClosedError{Market: d.clock.Market, NextOpen: d.clock.NextOpen(now)}
}

// executionQuote fetches the price a trade executes at. A quote without a
// usable price counts as an upstream failure: trades never execute at zero.
func (d *Desk) executionQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	quote, err := d.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !quote.Price.IsPositive() {
		return nil, errors.Wrapf(quotes.ErrUpstreamUnavailable, "no usable price for %s", symbol)
	}
	return quote, nil
}

func (d *Desk) cacheQuote(quote domain.Quote) {
	d.mu.Lock()
	d.quoteCache[quote.Symbol] = quote
	d.mu.Unlock()
}

func (d *Desk) writeSnapshot() {
	if d.snapshots == nil {
		return
	}
	snapshot := domain.SnapshotOf(d.ledger.Snapshot(), d.now().UTC())
	if err := d.snapshots.Append(snapshot); err != nil {
		d.logger.Warn("failed to record valuation snapshot", zap.Error(err))
	}
}

// trackedSymbols is the union of held and watched symbols, held first.
func (d *Desk) trackedSymbols() []string {
	seen := make(map[string]struct{})
	var symbols []string

	for symbol := range d.ledger.Snapshot().Positions {
		if _, ok := seen[symbol]; !ok {
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}
	for _, symbol := range d.watch.Symbols() {
		if _, ok := seen[symbol]; !ok {
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func (d *Desk) syncFeed() {
	if d.feed != nil {
		d.feed.SetSymbols(d.trackedSymbols())
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
