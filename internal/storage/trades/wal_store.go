// Package trades keeps the append-only trade history in a WAL. Records are
// written in execution order and never edited; readers page through them by
// WAL index.
package trades

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/paperdesk/paperdesk/internal/domain"
)

const (
	DefaultDir       = "./data/trades"
	segmentThreshold = 1000
	maxSegments      = 1000

	tradeKeyPrefix = "trade_"
)

// Entry pairs a trade record with its WAL index so readers can resume
// from where they left off.
type Entry struct {
	Index  uint64
	Record domain.TradeRecord
}

// WALStore persists trade records in a WAL.
type WALStore struct {
	mu  sync.RWMutex
	wal *gowal.Wal
	dir string
}

// NewWALStore initializes a WAL-backed trade history.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	wal, err := openWAL(dir)
	if err != nil {
		return nil, err
	}
	return &WALStore{wal: wal, dir: dir}, nil
}

func openWAL(dir string) (*gowal.Wal, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trade_seg_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade WAL")
	}
	return wal, nil
}

// Append writes one executed trade to the history.
func (s *WALStore) Append(record domain.TradeRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}
	if record.Symbol == "" {
		return errors.New("trade record symbol is required")
	}
	if !record.Action.Valid() {
		return errors.Errorf("trade record action %q is invalid", record.Action)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, record.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// TradesAfter returns all records written after the provided WAL index,
// in append order.
func (s *WALStore) TradesAfter(index uint64) ([]Entry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}

		var record domain.TradeRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		entries = append(entries, Entry{Index: idx, Record: record})
	}
	return entries, nil
}

// All returns the full history in append order.
func (s *WALStore) All() ([]domain.TradeRecord, error) {
	entries, err := s.TradesAfter(0)
	if err != nil {
		return nil, err
	}
	records := make([]domain.TradeRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record)
	}
	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Reset drops the whole history and starts an empty WAL. Only the explicit
// clear-all command uses this; normal operation never deletes records.
func (s *WALStore) Reset() error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Close(); err != nil {
		return errors.Wrap(err, "close trade WAL")
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return errors.Wrap(err, "remove trade WAL dir")
	}

	wal, err := openWAL(s.dir)
	if err != nil {
		return err
	}
	s.wal = wal
	return nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
