package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is a held quantity of one instrument plus its cost basis and live valuation.
type Position struct {
	Symbol       string
	Name         string
	Quantity     int64
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	UnrealizedPL decimal.Decimal
}

// NewPosition opens a position from a first fill.
func NewPosition(symbol, name string, quantity int64, price decimal.Decimal) (*Position, error) {
	if quantity <= 0 {
		return nil, errors.New("position quantity must be greater than zero")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("entry price must be greater than zero")
	}

	return &Position{
		Symbol:       symbol,
		Name:         name,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
		UnrealizedPL: decimal.Zero,
	}, nil
}

// MarkPrice updates the last known market price and recomputes the unrealized P&L.
// Quantity and cost basis are never touched here.
func (p *Position) MarkPrice(price decimal.Decimal) {
	if p == nil {
		return
	}
	p.CurrentPrice = price
	p.UnrealizedPL = p.CurrentPrice.Sub(p.EntryPrice).Mul(decimal.NewFromInt(p.Quantity))
}

// MarketValue is the position valued at the last known price.
func (p *Position) MarketValue() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// CostBasis is the capital committed to the currently held shares.
func (p *Position) CostBasis() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.EntryPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Clone returns an independent copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
