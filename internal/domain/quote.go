package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time snapshot of one instrument from the quote API.
// Partial is set when upstream omitted or mangled numeric fields and the
// zero defaults were substituted.
type Quote struct {
	Symbol     string
	Name       string
	Price      decimal.Decimal
	Change     decimal.Decimal
	Volume     int64
	MarketCap  decimal.Decimal
	PERatio    decimal.Decimal
	Week52High decimal.Decimal
	Week52Low  decimal.Decimal
	Partial    bool
}

// Tick is a single push update from the streaming feed.
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}
