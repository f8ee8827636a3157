// Package state persists the portfolio and watchlist as JSON files so
// restarts keep balances, holdings and tracked symbols. Decimals are stored
// as strings to survive round-trips without precision loss.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paperdesk/paperdesk/internal/domain"
)

const (
	portfolioFile = "portfolio.json"
	watchlistFile = "watchlist.json"
)

// Seed state for a first run, mirroring the defaults users start from.
var (
	defaultBalance  = decimal.NewFromInt(1000000)
	defaultPosition = seedPosition{symbol: "AAPL", name: "Apple Inc.", quantity: 10, price: "170.50"}
	defaultSymbols  = []string{"MSFT", "GOOGL", "AMZN", "AAPL"}
)

type seedPosition struct {
	symbol   string
	name     string
	quantity int64
	price    string
}

// Store reads and writes the persisted records under a single data directory.
// Loads never fail: anything missing or corrupt falls back to the defaults.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the data directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}
	return &Store{dir: dir, logger: logger}, nil
}

// DefaultPortfolio returns a fresh copy of the seed portfolio.
func DefaultPortfolio() *domain.Portfolio {
	p := domain.NewPortfolio(defaultBalance)
	price, _ := decimal.NewFromString(defaultPosition.price)
	pos, _ := domain.NewPosition(defaultPosition.symbol, defaultPosition.name, defaultPosition.quantity, price)
	p.Positions[pos.Symbol] = pos
	return p
}

// DefaultWatchlist returns a fresh copy of the seed watchlist.
func DefaultWatchlist() []string {
	out := make([]string, len(defaultSymbols))
	copy(out, defaultSymbols)
	return out
}

// Initialize seeds defaults for any record that does not exist yet.
// Safe to call on every start.
func (s *Store) Initialize() error {
	if _, err := os.Stat(filepath.Join(s.dir, portfolioFile)); errors.Is(err, os.ErrNotExist) {
		if err := s.SavePortfolio(DefaultPortfolio()); err != nil {
			return errors.Wrap(err, "seed default portfolio")
		}
	}
	if _, err := os.Stat(filepath.Join(s.dir, watchlistFile)); errors.Is(err, os.ErrNotExist) {
		if err := s.SaveWatchlist(DefaultWatchlist()); err != nil {
			return errors.Wrap(err, "seed default watchlist")
		}
	}
	return nil
}

// InitializeWithBalance seeds a first run with a custom cash balance and no
// positions. Existing records are left alone, same as Initialize.
func (s *Store) InitializeWithBalance(balance decimal.Decimal) error {
	if _, err := os.Stat(filepath.Join(s.dir, portfolioFile)); errors.Is(err, os.ErrNotExist) {
		if err := s.SavePortfolio(domain.NewPortfolio(balance)); err != nil {
			return errors.Wrap(err, "seed portfolio")
		}
	}
	if _, err := os.Stat(filepath.Join(s.dir, watchlistFile)); errors.Is(err, os.ErrNotExist) {
		if err := s.SaveWatchlist(DefaultWatchlist()); err != nil {
			return errors.Wrap(err, "seed default watchlist")
		}
	}
	return nil
}

type storedPosition struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	EntryPrice   string `json:"entry_price"`
	CurrentPrice string `json:"current_price"`
	UnrealizedPL string `json:"pl"`
}

type storedPortfolio struct {
	Balance   string           `json:"balance"`
	Positions []storedPosition `json:"positions"`
}

// LoadPortfolio returns the stored portfolio, or the default when the record
// is absent or does not decode. Corruption is logged, never propagated.
func (s *Store) LoadPortfolio() *domain.Portfolio {
	path := filepath.Join(s.dir, portfolioFile)
	payload, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read portfolio record, using defaults", zap.Error(err))
		}
		return DefaultPortfolio()
	}

	var stored storedPortfolio
	if err := json.Unmarshal(payload, &stored); err != nil {
		s.logger.Warn("portfolio record is corrupt, using defaults", zap.Error(err))
		return DefaultPortfolio()
	}

	portfolio, err := stored.toPortfolio()
	if err != nil {
		s.logger.Warn("portfolio record failed validation, using defaults", zap.Error(err))
		return DefaultPortfolio()
	}
	return portfolio
}

// SavePortfolio overwrites the portfolio record atomically via a temp file.
func (s *Store) SavePortfolio(p *domain.Portfolio) error {
	stored := storedPortfolio{
		Balance:   p.CashBalance.String(),
		Positions: make([]storedPosition, 0, len(p.Positions)),
	}
	for _, pos := range p.Positions {
		stored.Positions = append(stored.Positions, storedPosition{
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			Quantity:     pos.Quantity,
			EntryPrice:   pos.EntryPrice.String(),
			CurrentPrice: pos.CurrentPrice.String(),
			UnrealizedPL: pos.UnrealizedPL.String(),
		})
	}
	return s.writeFile(portfolioFile, stored)
}

// LoadWatchlist returns the stored symbols, or the default list when the
// record is absent or corrupt.
func (s *Store) LoadWatchlist() []string {
	path := filepath.Join(s.dir, watchlistFile)
	payload, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read watchlist record, using defaults", zap.Error(err))
		}
		return DefaultWatchlist()
	}

	var symbols []string
	if err := json.Unmarshal(payload, &symbols); err != nil {
		s.logger.Warn("watchlist record is corrupt, using defaults", zap.Error(err))
		return DefaultWatchlist()
	}
	return symbols
}

// SaveWatchlist overwrites the watchlist record atomically via a temp file.
func (s *Store) SaveWatchlist(symbols []string) error {
	return s.writeFile(watchlistFile, symbols)
}

// ClearAll deletes both records; subsequent loads fall back to defaults.
func (s *Store) ClearAll() error {
	for _, name := range []string{portfolioFile, watchlistFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "remove %s", name)
		}
	}
	return nil
}

func (s *Store) writeFile(name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrapf(err, "write %s temp file", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "persist %s", name)
	}
	return nil
}

func (sp storedPortfolio) toPortfolio() (*domain.Portfolio, error) {
	balance, err := decimal.NewFromString(sp.Balance)
	if err != nil {
		return nil, errors.Wrap(err, "decode balance")
	}

	portfolio := domain.NewPortfolio(balance)
	for _, stored := range sp.Positions {
		if stored.Quantity <= 0 {
			// zero rows are never persisted by the ledger; drop them on read too
			continue
		}
		entry, err := decimal.NewFromString(stored.EntryPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s entry price", stored.Symbol)
		}
		current := entry
		if stored.CurrentPrice != "" {
			current, err = decimal.NewFromString(stored.CurrentPrice)
			if err != nil {
				return nil, errors.Wrapf(err, "decode %s current price", stored.Symbol)
			}
		}
		pos, err := domain.NewPosition(stored.Symbol, stored.Name, stored.Quantity, entry)
		if err != nil {
			return nil, errors.Wrapf(err, "restore %s position", stored.Symbol)
		}
		pos.MarkPrice(current)
		portfolio.Positions[pos.Symbol] = pos
	}
	return portfolio, nil
}
