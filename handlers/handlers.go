package handlers

import (
	"datalens/ai"
	"datalens/classify"
	"datalens/db"
	"datalens/sessions"
)

// @title           datalens API
// @version         1.0
// @description     Ask business questions in natural language against any relational table and get back tables and charts.

// @host      localhost:9090
// @BasePath  /

// @schemes   http https

type Handlers struct {
	history  *db.HistoryStore
	ai       *ai.AIService
	gate     *classify.Gate
	sessions *sessions.Store
}

func New(history *db.HistoryStore, aiService *ai.AIService, gate *classify.Gate, sessionStore *sessions.Store) *Handlers {
	return &Handlers{
		history:  history,
		ai:       aiService,
		gate:     gate,
		sessions: sessionStore,
	}
}
