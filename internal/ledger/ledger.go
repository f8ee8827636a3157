package ledger

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paperdesk/paperdesk/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a buy costs more than the available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInvalidQuantity is returned for a non-positive trade quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrInvalidPrice is returned for a non-positive execution price.
	ErrInvalidPrice = errors.New("price must be positive")
)

type stateSaver interface {
	SavePortfolio(*domain.Portfolio) error
}

type historyWriter interface {
	Append(domain.TradeRecord) error
}

// Ledger owns the portfolio and is the only writer to it. Every operation
// either returns a typed error with the portfolio untouched, or applies the
// full state transition, persists it and appends the trade record.
type Ledger struct {
	mu        sync.RWMutex
	portfolio *domain.Portfolio
	store     stateSaver
	history   historyWriter
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a ledger over an already-loaded portfolio. Store and history
// may be nil in tests; mutations are then kept in memory only.
func New(portfolio *domain.Portfolio, store stateSaver, history historyWriter, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if portfolio == nil {
		portfolio = domain.NewPortfolio(decimal.Zero)
	}
	return &Ledger{
		portfolio: portfolio,
		store:     store,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source, for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Buy executes a simulated market buy at the given price. The price is the
// caller's responsibility to have fetched fresh; the ledger only validates
// that it is positive.
func (l *Ledger) Buy(symbol, name string, quantity int64, price decimal.Decimal) (*domain.TradeRecord, error) {
	if quantity <= 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "got %d", quantity)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrapf(ErrInvalidPrice, "got %s", price.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := price.Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(l.portfolio.CashBalance) {
		return nil, errors.Wrapf(ErrInsufficientFunds, "need %s have %s",
			cost.String(), l.portfolio.CashBalance.String())
	}

	l.portfolio.CashBalance = l.portfolio.CashBalance.Sub(cost)

	if pos, ok := l.portfolio.Positions[symbol]; ok {
		oldQty := decimal.NewFromInt(pos.Quantity)
		addQty := decimal.NewFromInt(quantity)
		existingNotional := pos.EntryPrice.Mul(oldQty)
		addedNotional := price.Mul(addQty)
		pos.Quantity += quantity
		pos.EntryPrice = existingNotional.Add(addedNotional).Div(oldQty.Add(addQty))
		if name != "" {
			pos.Name = name
		}
		pos.MarkPrice(price)
	} else {
		pos, err := domain.NewPosition(symbol, name, quantity, price)
		if err != nil {
			// validated above, but keep the portfolio consistent if it ever trips
			l.portfolio.CashBalance = l.portfolio.CashBalance.Add(cost)
			return nil, errors.Wrap(err, "open position")
		}
		l.portfolio.Positions[symbol] = pos
	}

	record := domain.NewTradeRecord(symbol, domain.ActionBuy, quantity, price, l.now())
	l.commit(record)

	l.logger.Info("buy executed",
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", price.String()),
		zap.String("cash", l.portfolio.CashBalance.String()))

	return &record, nil
}

// Sell executes a simulated market sell at the given price. A partial sell
// leaves the average cost basis of the remaining shares unchanged; selling
// the full quantity removes the position entirely.
func (l *Ledger) Sell(symbol string, quantity int64, price decimal.Decimal) (*domain.TradeRecord, error) {
	if quantity <= 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "got %d", quantity)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrapf(ErrInvalidPrice, "got %s", price.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.portfolio.Positions[symbol]
	if !ok || pos.Quantity < quantity {
		held := int64(0)
		if ok {
			held = pos.Quantity
		}
		return nil, errors.Wrapf(ErrInsufficientShares, "want %d have %d", quantity, held)
	}

	proceeds := price.Mul(decimal.NewFromInt(quantity))
	l.portfolio.CashBalance = l.portfolio.CashBalance.Add(proceeds)

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(l.portfolio.Positions, symbol)
	} else {
		pos.MarkPrice(price)
	}

	record := domain.NewTradeRecord(symbol, domain.ActionSell, quantity, price, l.now())
	l.commit(record)

	l.logger.Info("sell executed",
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", price.String()),
		zap.String("cash", l.portfolio.CashBalance.String()))

	return &record, nil
}

// MarkToMarket applies fresh prices to every held position present in the
// update set and recomputes their unrealized P&L. Cash and quantities are
// never changed. Positions absent from the update are left as-is.
func (l *Ledger) MarkToMarket(prices map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for symbol, price := range prices {
		pos, ok := l.portfolio.Positions[symbol]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		pos.MarkPrice(price)
		changed = true
	}
	if changed {
		l.persist()
	}
}

// Snapshot returns a deep copy of the current portfolio.
func (l *Ledger) Snapshot() *domain.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.portfolio.Clone()
}

// TotalValue is cash plus holdings at last known prices.
func (l *Ledger) TotalValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.portfolio.TotalValue()
}

// TotalUnrealizedPL sums the paper gain/loss across open positions.
func (l *Ledger) TotalUnrealizedPL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.portfolio.TotalUnrealizedPL()
}

// Replace swaps in a new portfolio (used by the reset command) and persists it.
func (l *Ledger) Replace(portfolio *domain.Portfolio) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.portfolio = portfolio
	l.persist()
}

// commit persists the mutated portfolio and appends the trade record.
// Both writes are best-effort: the in-memory state is already authoritative
// and failures are surfaced in the log, not to the trading caller.
func (l *Ledger) commit(record domain.TradeRecord) {
	l.persist()
	if l.history != nil {
		if err := l.history.Append(record); err != nil {
			l.logger.Error("failed to append trade record", zap.Error(err), zap.String("trade", record.String()))
		}
	}
}

func (l *Ledger) persist() {
	if l.store == nil {
		return
	}
	if err := l.store.SavePortfolio(l.portfolio); err != nil {
		l.logger.Warn("failed to persist portfolio", zap.Error(err))
	}
}
