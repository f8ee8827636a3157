package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/internal/desk"
	"github.com/paperdesk/paperdesk/internal/domain"
	"github.com/paperdesk/paperdesk/internal/ledger"
	"github.com/paperdesk/paperdesk/internal/quotes"
	"github.com/paperdesk/paperdesk/internal/storage/snapshots"
)

type fakeDesk struct {
	portfolio *domain.Portfolio
	buyErr    error
	sellErr   error
	resets    int
	watched   map[string]bool
}

func (f *fakeDesk) Buy(_ context.Context, symbol string, qty int64) (*domain.TradeRecord, error) {
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	r := domain.NewTradeRecord(symbol, domain.ActionBuy, qty, decimal.NewFromInt(100), time.Now())
	return &r, nil
}

func (f *fakeDesk) Sell(_ context.Context, symbol string, qty int64) (*domain.TradeRecord, error) {
	if f.sellErr != nil {
		return nil, f.sellErr
	}
	r := domain.NewTradeRecord(symbol, domain.ActionSell, qty, decimal.NewFromInt(100), time.Now())
	return &r, nil
}

func (f *fakeDesk) ToggleWatchlist(symbol string) bool {
	f.watched[symbol] = !f.watched[symbol]
	return f.watched[symbol]
}

func (f *fakeDesk) Reset() error { f.resets++; return nil }

func (f *fakeDesk) Portfolio() *domain.Portfolio { return f.portfolio }

func (f *fakeDesk) Watchlist() []string { return []string{"AAPL", "MSFT"} }

func (f *fakeDesk) Quotes() map[string]domain.Quote {
	return map[string]domain.Quote{
		"AAPL": {Symbol: "AAPL", Price: decimal.NewFromFloat(178.25), Change: decimal.NewFromFloat(-1.2)},
	}
}

func (f *fakeDesk) MarketStatus() (string, bool, time.Time) {
	return "US Market (NASDAQ/NYSE)", false, time.Date(2026, 2, 9, 9, 30, 0, 0, time.UTC)
}

type fakeQuoteGetter struct {
	err error
}

func (f *fakeQuoteGetter) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quote{Symbol: symbol, Name: "Apple Inc.", Price: decimal.NewFromFloat(178.25)}, nil
}

type fakeTrades struct {
	records []domain.TradeRecord
	err     error
}

func (f *fakeTrades) All() ([]domain.TradeRecord, error) { return f.records, f.err }

type fakeSnapshots struct {
	entries []snapshots.Entry
}

func (f *fakeSnapshots) SnapshotsAfter(index uint64) ([]snapshots.Entry, error) {
	var out []snapshots.Entry
	for _, e := range f.entries {
		if e.Index > index {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *fakeDesk, *fakeQuoteGetter, *fakeTrades) {
	t.Helper()

	p := domain.NewPortfolio(decimal.NewFromInt(8295))
	pos, err := domain.NewPosition("AAPL", "Apple Inc.", 10, decimal.NewFromFloat(170.50))
	require.NoError(t, err)
	pos.MarkPrice(decimal.NewFromInt(180))
	p.Positions["AAPL"] = pos

	d := &fakeDesk{portfolio: p, watched: map[string]bool{}}
	q := &fakeQuoteGetter{}
	trades := &fakeTrades{}
	s := NewServer(":0", d, q, trades, &fakeSnapshots{}, nil)
	return s, d, q, trades
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_Portfolio(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "8295", body["balance"])
	assert.Equal(t, "1800", body["positions_value"])
	assert.Equal(t, "10095", body["total_value"])
	assert.Equal(t, "95", body["unrealized_pl"])

	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	pos := positions[0].(map[string]any)
	assert.Equal(t, "AAPL", pos["symbol"])
	assert.EqualValues(t, 10, pos["quantity"])
}

func TestServer_TradeBuy(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/trade", `{"symbol":"AAPL","quantity":5,"action":"buy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "buy", body["action"])
	assert.Equal(t, "AAPL", body["symbol"])
}

func TestServer_TradeErrorMapping(t *testing.T) {
	s, d, _, _ := newTestServer(t)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errors.Wrap(ledger.ErrInsufficientFunds, "need 1000 have 10"), http.StatusUnprocessableEntity, "insufficient_funds"},
		{errors.Wrap(ledger.ErrInsufficientShares, "want 5 have 0"), http.StatusUnprocessableEntity, "insufficient_shares"},
		{errors.Wrap(ledger.ErrInvalidQuantity, "got -1"), http.StatusUnprocessableEntity, "invalid_quantity"},
		{errors.Wrap(ledger.ErrInvalidPrice, "got 0"), http.StatusUnprocessableEntity, "invalid_price"},
		{errors.Wrap(quotes.ErrUpstreamUnavailable, "fetch"), http.StatusBadGateway, "upstream_unavailable"},
	}
	for _, tc := range cases {
		d.buyErr = tc.err
		rec := do(t, s, http.MethodPost, "/api/trade", `{"symbol":"AAPL","quantity":5,"action":"buy"}`)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.code, decode(t, rec)["code"])
	}
}

func TestServer_TradeMarketClosed(t *testing.T) {
	s, d, _, _ := newTestServer(t)
	nextOpen := time.Date(2026, 2, 9, 9, 30, 0, 0, time.UTC)
	d.buyErr = &desk.MarketClosedError{Market: "US Market (NASDAQ/NYSE)", NextOpen: nextOpen}

	rec := do(t, s, http.MethodPost, "/api/trade", `{"symbol":"AAPL","quantity":5,"action":"buy"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "market_closed", body["code"])
	assert.Equal(t, nextOpen.Format(time.RFC3339), body["next_open"])
}

func TestServer_TradeBadRequests(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/trade", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/trade", `{"symbol":"AAPL","quantity":5,"action":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_QuoteEndpoint(t *testing.T) {
	s, _, q, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/quote/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "178.25", body["price"])

	q.err = errors.Wrap(quotes.ErrUpstreamUnavailable, "down")
	rec = do(t, s, http.MethodGet, "/api/quote/AAPL", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_WatchlistEndpoints(t *testing.T) {
	s, d, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["symbols"], 2)

	rec = do(t, s, http.MethodPost, "/api/watchlist/toggle", `{"symbol":"TSLA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["watched"])
	assert.True(t, d.watched["TSLA"])

	rec = do(t, s, http.MethodPost, "/api/watchlist/toggle", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MarketStatus(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/market/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["open"])
	assert.NotEmpty(t, body["next_open"])
}

func TestServer_TradesEndpoint(t *testing.T) {
	s, _, _, trades := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	trades.records = []domain.TradeRecord{
		domain.NewTradeRecord("AAPL", domain.ActionBuy, 10, decimal.NewFromInt(170), time.Now()),
	}
	rec = do(t, s, http.MethodGet, "/api/trades", "")
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "AAPL", out[0]["symbol"])
}

func TestServer_Reset(t *testing.T) {
	s, d, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, d.resets)
}

func TestServer_Index(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paperdesk")

	rec = do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PortfolioStream(t *testing.T) {
	snap := domain.PortfolioSnapshot{
		Cash:       decimal.NewFromInt(1000000),
		TotalValue: decimal.NewFromInt(1001705),
		Timestamp:  time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
	}
	store := &fakeSnapshots{entries: []snapshots.Entry{{Index: 1, Snapshot: snap}}}

	p := domain.NewPortfolio(decimal.NewFromInt(1))
	s := NewServer(":0", &fakeDesk{portfolio: p, watched: map[string]bool{}}, &fakeQuoteGetter{}, &fakeTrades{}, store, nil)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/portfolio/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: portfolio\n", event)

	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(data, "data: "))

	var got domain.PortfolioSnapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &got))
	assert.True(t, got.TotalValue.Equal(snap.TotalValue))
}
