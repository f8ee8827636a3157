package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action is the side of an executed trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether the action is one of the known sides.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeRecord is an immutable log entry of one executed buy or sell.
// Records are appended in execution order and never edited or deleted.
type TradeRecord struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Action    Action          `json:"action"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTradeRecord stamps a freshly executed trade.
func NewTradeRecord(symbol string, action Action, quantity int64, price decimal.Decimal, ts time.Time) TradeRecord {
	return TradeRecord{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Total:     price.Mul(decimal.NewFromInt(quantity)),
		Timestamp: ts,
	}
}

// String returns a human-readable string representation.
func (t TradeRecord) String() string {
	return fmt.Sprintf("%s %d %s @ %s", t.Action, t.Quantity, t.Symbol, t.Price.String())
}
