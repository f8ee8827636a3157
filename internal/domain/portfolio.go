package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio holds the simulated cash balance and all open positions, keyed by symbol.
// A position with zero quantity is never kept in the map.
type Portfolio struct {
	CashBalance decimal.Decimal
	Positions   map[string]*Position
}

// NewPortfolio creates an empty portfolio with the given starting cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		CashBalance: cash,
		Positions:   make(map[string]*Position),
	}
}

// Clone returns a deep copy, so a caller can hold a snapshot while the
// original keeps mutating.
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	clone := &Portfolio{
		CashBalance: p.CashBalance,
		Positions:   make(map[string]*Position, len(p.Positions)),
	}
	for symbol, pos := range p.Positions {
		clone.Positions[symbol] = pos.Clone()
	}
	return clone
}

// TotalValue is cash plus every position valued at its last known price.
func (p *Portfolio) TotalValue() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	total := p.CashBalance
	for _, pos := range p.Positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

// TotalUnrealizedPL sums the paper gain/loss across all open positions.
func (p *Portfolio) TotalUnrealizedPL() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.UnrealizedPL)
	}
	return total
}

// PositionsValue is the market value of the holdings excluding cash.
func (p *Portfolio) PositionsValue() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

// PortfolioSnapshot is a point-in-time valuation written after every trade and refresh.
type PortfolioSnapshot struct {
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	UnrealizedPL   decimal.Decimal `json:"unrealized_pl"`
	Timestamp      time.Time       `json:"ts"`
}

// SnapshotOf values the portfolio at the given instant.
func SnapshotOf(p *Portfolio, ts time.Time) PortfolioSnapshot {
	return PortfolioSnapshot{
		Cash:           p.CashBalance,
		PositionsValue: p.PositionsValue(),
		TotalValue:     p.TotalValue(),
		UnrealizedPL:   p.TotalUnrealizedPL(),
		Timestamp:      ts,
	}
}
