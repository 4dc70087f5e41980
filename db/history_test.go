package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryStore_RoundTrip(t *testing.T) {
	store := newTestHistory(t)

	require.NoError(t, store.StoreExchange("s1", "show revenue", "Total revenue: $25.00"))
	require.NoError(t, store.StoreExchange("s1", "bar", "Here's your bar chart with the data:"))

	history, err := store.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "show revenue", history[0].Message)
	assert.Equal(t, "Total revenue: $25.00", history[0].Response)
	assert.Equal(t, "bar", history[1].Message)
}

func TestHistoryStore_SessionsAreIsolated(t *testing.T) {
	store := newTestHistory(t)

	require.NoError(t, store.StoreExchange("s1", "hi", "hello"))

	history, err := store.History("s2")
	require.NoError(t, err)
	assert.Empty(t, history)
}
