// Package web serves the dashboard UI, the REST API and the SSE valuation
// stream.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paperdesk/paperdesk/internal/desk"
	"github.com/paperdesk/paperdesk/internal/domain"
	"github.com/paperdesk/paperdesk/internal/ledger"
	"github.com/paperdesk/paperdesk/internal/quotes"
	"github.com/paperdesk/paperdesk/internal/storage/snapshots"
)

const snapshotPollInterval = 2 * time.Second

type tradingDesk interface {
	Buy(ctx context.Context, symbol string, quantity int64) (*domain.TradeRecord, error)
	Sell(ctx context.Context, symbol string, quantity int64) (*domain.TradeRecord, error)
	ToggleWatchlist(symbol string) bool
	Reset() error
	Portfolio() *domain.Portfolio
	Watchlist() []string
	Quotes() map[string]domain.Quote
	MarketStatus() (market string, open bool, nextOpen time.Time)
}

type quoteGetter interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type tradeReader interface {
	All() ([]domain.TradeRecord, error)
}

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]snapshots.Entry, error)
}

// Server exposes the HTTP surface over a desk and its stores.
type Server struct {
	Addr      string
	Desk      tradingDesk
	Quotes    quoteGetter
	Trades    tradeReader
	Snapshots snapshotReader
	Logger    *zap.Logger
}

// NewServer creates a web server instance.
func NewServer(addr string, d tradingDesk, q quoteGetter, trades tradeReader, snaps snapshotReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Desk: d, Quotes: q, Trades: trades, Snapshots: snaps, Logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/watchlist", s.handleWatchlist)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/market/status", s.handleMarketStatus)
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuote)
	mux.HandleFunc("POST /api/trade", s.handleTrade)
	mux.HandleFunc("POST /api/watchlist/toggle", s.handleWatchlistToggle)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /portfolio/stream", s.handlePortfolioStream)
	return mux
}

type positionView struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	UnrealizedPL decimal.Decimal `json:"pl"`
}

type portfolioView struct {
	Balance        decimal.Decimal `json:"balance"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	UnrealizedPL   decimal.Decimal `json:"unrealized_pl"`
	Positions      []positionView  `json:"positions"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	p := s.Desk.Portfolio()

	view := portfolioView{
		Balance:        p.CashBalance,
		PositionsValue: p.PositionsValue(),
		TotalValue:     p.TotalValue(),
		UnrealizedPL:   p.TotalUnrealizedPL(),
		Positions:      make([]positionView, 0, len(p.Positions)),
	}
	for _, pos := range p.Positions {
		view.Positions = append(view.Positions, positionView{
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			Quantity:     pos.Quantity,
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: pos.CurrentPrice,
			MarketValue:  pos.MarketValue(),
			UnrealizedPL: pos.UnrealizedPL,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

type watchedQuote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Change decimal.Decimal `json:"change"`
}

func (s *Server) handleWatchlist(w http.ResponseWriter, _ *http.Request) {
	symbols := s.Desk.Watchlist()
	cache := s.Desk.Quotes()

	items := make([]watchedQuote, 0, len(symbols))
	for _, symbol := range symbols {
		item := watchedQuote{Symbol: symbol}
		if quote, ok := cache[symbol]; ok {
			item.Price = quote.Price
			item.Change = quote.Change
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols, "quotes": items})
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	if s.Trades == nil {
		writeJSON(w, http.StatusOK, []domain.TradeRecord{})
		return
	}
	records, err := s.Trades.All()
	if err != nil {
		s.Logger.Error("failed to load trade history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load trade history", nil)
		return
	}
	if records == nil {
		records = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, _ *http.Request) {
	market, open, nextOpen := s.Desk.MarketStatus()
	resp := map[string]any{"market": market, "open": open}
	if !open {
		resp["next_open"] = nextOpen.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type quoteView struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Change     decimal.Decimal `json:"change"`
	Volume     int64           `json:"volume"`
	MarketCap  decimal.Decimal `json:"market_cap"`
	PERatio    decimal.Decimal `json:"pe_ratio"`
	Week52High decimal.Decimal `json:"week52_high"`
	Week52Low  decimal.Decimal `json:"week52_low"`
	Partial    bool            `json:"partial"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.Quotes.GetQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteView{
		Symbol:     quote.Symbol,
		Name:       quote.Name,
		Price:      quote.Price,
		Change:     quote.Change,
		Volume:     quote.Volume,
		MarketCap:  quote.MarketCap,
		PERatio:    quote.PERatio,
		Week52High: quote.Week52High,
		Week52Low:  quote.Week52Low,
		Partial:    quote.Partial,
	})
}

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Action   string `json:"action"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON", nil)
		return
	}

	var (
		record *domain.TradeRecord
		err    error
	)
	switch domain.Action(req.Action) {
	case domain.ActionBuy:
		record, err = s.Desk.Buy(r.Context(), req.Symbol, req.Quantity)
	case domain.ActionSell:
		record, err = s.Desk.Sell(r.Context(), req.Symbol, req.Quantity)
	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("action must be %q or %q", domain.ActionBuy, domain.ActionSell), nil)
		return
	}
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleWatchlistToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "symbol is required", nil)
		return
	}
	watched := s.Desk.ToggleWatchlist(req.Symbol)
	writeJSON(w, http.StatusOK, map[string]any{"symbol": req.Symbol, "watched": watched})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.Desk.Reset(); err != nil {
		s.Logger.Error("reset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "reset failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// writeTradeError maps domain errors onto HTTP statuses: trade rejections are
// 422 with a stable code, upstream failures are 502.
func (s *Server) writeTradeError(w http.ResponseWriter, err error) {
	var closed *desk.MarketClosedError
	switch {
	case errors.As(err, &closed):
		writeError(w, http.StatusUnprocessableEntity, "market_closed", closed.Error(), map[string]any{
			"market":    closed.Market,
			"next_open": closed.NextOpen.Format(time.RFC3339),
		})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientShares):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_shares", err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, "invalid_quantity", err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidPrice):
		writeError(w, http.StatusUnprocessableEntity, "invalid_price", err.Error(), nil)
	case errors.Is(err, quotes.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "quote service unavailable", nil)
	default:
		s.Logger.Error("trade request failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
}

func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	if s.Snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "snapshot store not available", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendSnapshots := func() error {
		entries, err := s.Snapshots.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: portfolio\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = entry.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.Logger.Error("portfolio stream initial load failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.Logger.Warn("portfolio stream poll failed", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	body := map[string]any{"error": message, "code": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
