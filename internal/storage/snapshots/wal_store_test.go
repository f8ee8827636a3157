package snapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/internal/domain"
)

func snapshot(cash float64, ts time.Time) domain.PortfolioSnapshot {
	c := decimal.NewFromFloat(cash)
	return domain.PortfolioSnapshot{
		Cash:       c,
		TotalValue: c,
		Timestamp:  ts,
	}
}

func TestWALStore_AppendAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(snapshot(1000000, base)))
	require.NoError(t, store.Append(snapshot(999000, base.Add(2*time.Second))))

	entries, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Snapshot.Cash.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, entries[1].Snapshot.Cash.Equal(decimal.NewFromInt(999000)))
	assert.True(t, entries[1].Snapshot.Timestamp.After(entries[0].Snapshot.Timestamp))
}

func TestWALStore_SnapshotsAfterResumes(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Now().UTC()
	require.NoError(t, store.Append(snapshot(1, base)))
	mark := store.CurrentIndex()
	require.NoError(t, store.Append(snapshot(2, base.Add(time.Second))))

	entries, err := store.SnapshotsAfter(mark)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, mark+1, entries[0].Index)

	entries, err = store.SnapshotsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
