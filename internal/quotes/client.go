// Package quotes talks to the market data service: REST lookups for full
// quotes and a websocket feed for streaming price ticks.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paperdesk/paperdesk/internal/domain"
)

// ErrUpstreamUnavailable marks transport, HTTP or decode failures from the
// quote API. Callers keep serving their last known prices when they see it.
var ErrUpstreamUnavailable = errors.New("quote service unavailable")

const defaultTimeout = 10 * time.Second

// Client fetches quotes over the REST API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the given API base URL.
func NewClient(baseURL string) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(defaultTimeout)
	return &Client{http: c}
}

// quotePayload mirrors the API response. Numeric fields use laxNumber so a
// missing, null or garbled value degrades to zero instead of failing the
// whole quote.
type quotePayload struct {
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	Price   laxNumber `json:"price"`
	Change  laxNumber `json:"change"`
	Volume  laxNumber `json:"volume"`
	Cap     laxNumber `json:"marketCap"`
	Details struct {
		PERatio    laxNumber `json:"pe_ratio"`
		Week52High laxNumber `json:"week52_high"`
		Week52Low  laxNumber `json:"week52_low"`
	} `json:"details"`
}

// GetQuote fetches the current quote for one symbol. Fields the upstream
// omitted or mangled come back as zero with Partial set.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		Get("/api/stock/{symbol}")
	if err != nil {
		return nil, errors.Wrapf(ErrUpstreamUnavailable, "fetch quote for %s: %v", symbol, err)
	}
	if resp.IsError() {
		return nil, errors.Wrapf(ErrUpstreamUnavailable, "fetch quote for %s: status %d", symbol, resp.StatusCode())
	}

	var payload quotePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errors.Wrapf(ErrUpstreamUnavailable, "decode quote for %s: %v", symbol, err)
	}

	quote := &domain.Quote{Symbol: symbol, Name: payload.Name}
	partial := false

	quote.Price, partial = takeDecimal(payload.Price, partial)
	quote.Change, partial = takeDecimal(payload.Change, partial)
	quote.MarketCap, partial = takeDecimal(payload.Cap, partial)
	quote.PERatio, partial = takeDecimal(payload.Details.PERatio, partial)
	quote.Week52High, partial = takeDecimal(payload.Details.Week52High, partial)
	quote.Week52Low, partial = takeDecimal(payload.Details.Week52Low, partial)

	if payload.Volume.ok {
		quote.Volume = payload.Volume.value.IntPart()
	} else {
		partial = true
	}

	quote.Partial = partial
	return quote, nil
}

func takeDecimal(n laxNumber, partial bool) (decimal.Decimal, bool) {
	if !n.ok {
		return decimal.Zero, true
	}
	return n.value, partial
}

// laxNumber accepts a JSON number or a numeric string. Anything else,
// including null and absence, leaves ok unset.
type laxNumber struct {
	value decimal.Decimal
	ok    bool
}

func (n *laxNumber) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	n.value = value
	n.ok = true
	return nil
}

func (n laxNumber) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return []byte("null"), nil
	}
	return []byte(n.value.String()), nil
}

// parseEpoch interprets a feed timestamp that may be seconds or milliseconds.
func parseEpoch(raw json.Number) (time.Time, error) {
	v, err := strconv.ParseInt(raw.String(), 10, 64)
	if err != nil {
		f, ferr := raw.Float64()
		if ferr != nil {
			return time.Time{}, fmt.Errorf("bad epoch %q", raw.String())
		}
		v = int64(f)
	}
	if v > 1e12 {
		return time.UnixMilli(v).UTC(), nil
	}
	return time.Unix(v, 0).UTC(), nil
}
