package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalens/models"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore()

	_, found := s.PendingChartContext("s1")
	assert.False(t, found)

	pending := &models.PendingChartContext{
		TableName: "orders",
		Intent:    models.QueryIntent{GroupBy: []string{"product"}},
	}
	s.SetPendingChartContext("s1", pending)

	got, found := s.PendingChartContext("s1")
	require.True(t, found)
	assert.Equal(t, "orders", got.TableName)
	assert.Equal(t, []string{"product"}, got.Intent.GroupBy)

	_, found = s.PendingChartContext("s2")
	assert.False(t, found, "contexts are per session")
}

func TestStore_LastWriteWins(t *testing.T) {
	s := NewStore()

	s.SetPendingChartContext("s1", &models.PendingChartContext{TableName: "first"})
	s.SetPendingChartContext("s1", &models.PendingChartContext{TableName: "second"})

	got, found := s.PendingChartContext("s1")
	require.True(t, found)
	assert.Equal(t, "second", got.TableName)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()

	s.SetPendingChartContext("s1", &models.PendingChartContext{TableName: "orders"})
	s.ClearPendingChartContext("s1")

	_, found := s.PendingChartContext("s1")
	assert.False(t, found)

	// Clearing an absent session is a no-op.
	s.ClearPendingChartContext("s1")
}

func TestStore_SetNilClears(t *testing.T) {
	s := NewStore()

	s.SetPendingChartContext("s1", &models.PendingChartContext{TableName: "orders"})
	s.SetPendingChartContext("s1", nil)

	_, found := s.PendingChartContext("s1")
	assert.False(t, found)
}
