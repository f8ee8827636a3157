package watchlist

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type saver interface {
	SaveWatchlist([]string) error
}

// Watchlist is a set of tracked symbols, independent of any held position.
// Mutations are written through to the store; the set itself stays
// authoritative in memory.
type Watchlist struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
	store   saver
	logger  *zap.Logger
}

// New builds a watchlist from the loaded symbols. Store may be nil in tests.
func New(symbols []string, store saver, logger *zap.Logger) *Watchlist {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watchlist{
		symbols: make(map[string]struct{}, len(symbols)),
		store:   store,
		logger:  logger,
	}
	for _, s := range symbols {
		if s = normalize(s); s != "" {
			w.symbols[s] = struct{}{}
		}
	}
	return w
}

// Toggle adds the symbol when absent and removes it when present.
// It reports whether the symbol is on the list afterwards.
func (w *Watchlist) Toggle(symbol string) bool {
	symbol = normalize(symbol)
	if symbol == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, present := w.symbols[symbol]
	if present {
		delete(w.symbols, symbol)
	} else {
		w.symbols[symbol] = struct{}{}
	}
	w.persist()
	return !present
}

// Contains reports whether the symbol is currently tracked.
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.symbols[normalize(symbol)]
	return ok
}

// Symbols returns the tracked symbols, sorted for stable output.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.symbols))
	for s := range w.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Replace swaps the whole set (used by the reset command) and persists it.
func (w *Watchlist) Replace(symbols []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.symbols = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = normalize(s); s != "" {
			w.symbols[s] = struct{}{}
		}
	}
	w.persist()
}

func (w *Watchlist) persist() {
	if w.store == nil {
		return
	}
	out := make([]string, 0, len(w.symbols))
	for s := range w.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	if err := w.store.SaveWatchlist(out); err != nil {
		w.logger.Warn("failed to persist watchlist", zap.Error(err))
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
