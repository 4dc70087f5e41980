package sessions

import (
	"github.com/patrickmn/go-cache"

	"datalens/models"
)

// Store holds the per-session pending chart context. A context has no
// expiry: it lives until the next request from its session consumes it or
// explicitly clears it. Concurrent writes for the same session are
// last-write-wins.
type Store struct {
	contexts *cache.Cache
}

func NewStore() *Store {
	return &Store{
		contexts: cache.New(cache.NoExpiration, 0),
	}
}

// PendingChartContext returns the parked context for the session, if any.
func (s *Store) PendingChartContext(sessionID string) (*models.PendingChartContext, bool) {
	v, found := s.contexts.Get(sessionID)
	if !found {
		return nil, false
	}
	ctx, ok := v.(*models.PendingChartContext)
	if !ok || ctx == nil {
		return nil, false
	}
	return ctx, true
}

// SetPendingChartContext parks a context for the session, replacing any
// previous one.
func (s *Store) SetPendingChartContext(sessionID string, ctx *models.PendingChartContext) {
	if ctx == nil {
		s.contexts.Delete(sessionID)
		return
	}
	s.contexts.Set(sessionID, ctx, cache.NoExpiration)
}

// ClearPendingChartContext removes the session's parked context.
func (s *Store) ClearPendingChartContext(sessionID string) {
	s.contexts.Delete(sessionID)
}
