package journal_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore/journal"
)

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Append(journal.Record{
		EventID:    "e1",
		Channel:    "orders",
		Type:       "created",
		Priority:   3,
		Data:       []byte(`{"qty":2}`),
		Timestamp:  time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC),
		BufferedAt: time.Date(2026, 5, 1, 10, 0, 1, 0, time.UTC),
	}))
	require.NoError(t, store.Close())

	reopened, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.List("orders", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "e1", recs[0].EventID)
	assert.Equal(t, "created", recs[0].Type)
	assert.Equal(t, 3, recs[0].Priority)
	assert.Equal(t, []byte(`{"qty":2}`), recs[0].Data)
	assert.True(t, recs[0].Timestamp.Equal(time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC)))
}

func TestSQLiteStoreCloseIsIdempotent(t *testing.T) {
	store, err := journal.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestSQLiteStoreInvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent-dir/sub/journal.db")
	assert.Error(t, err)
}
