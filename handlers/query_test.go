package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalens/ai"
	"datalens/cache"
	"datalens/classify"
	"datalens/db"
	"datalens/models"
	"datalens/sessions"
)

const testIntentJSON = `{"group_by": ["product"], "projections": {"sales": "SUM(sales)"}}`

// fakeCompletionServer mimics an OpenAI-compatible chat-completions endpoint
// and answers by prompt shape: classification prompts get a label, intent
// prompts get a fixed intent, everything else gets small talk.
func fakeCompletionServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		prompt := req.Messages[0].Content
		var content string
		switch {
		case strings.Contains(prompt, "Classify as 'casual' or 'data'"):
			content = "casual"
		case strings.Contains(prompt, "Analyze the business intent"):
			content = testIntentJSON
		default:
			content = "Hello! How can I help you today?"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestRouter wires the full handler stack against a throwaway sqlite file
// and the fake completion server.
func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "sales.db")
	conn, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE sales_data (product TEXT, sales REAL)`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO sales_data (product, sales) VALUES
		('Widget', 150), ('Widget', 50), ('Gadget', 90)`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	history, err := db.NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	srv := fakeCompletionServer(t)
	aiService := ai.New("test-key", "test-model", srv.URL, cache.New())
	h := New(history, aiService, classify.NewGate(aiService), sessions.NewStore())

	r := gin.New()
	r.POST("/api/query", h.QueryHandler)
	r.GET("/api/history/:session", h.HistoryHandler)
	r.GET("/health", h.HealthHandler)
	return r, dbPath
}

func postQuery(t *testing.T, r *gin.Engine, sessionID, question, table, dbPath string) (*httptest.ResponseRecorder, models.QueryResponse) {
	t.Helper()
	body := map[string]interface{}{
		"question":   question,
		"table_name": table,
		"database_config": map[string]interface{}{
			"db_type":  "sqlite",
			"database": dbPath,
		},
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", sessionID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestQueryHandler_ChartDisambiguationRoundTrip(t *testing.T) {
	r, dbPath := newTestRouter(t)

	// A chart request without a named kind parks the intent and asks.
	w, resp := postQuery(t, r, "s1", "show me a chart of sales by product", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.AwaitingChartType)
	assert.Equal(t, "What type of chart would you like to see?", resp.Message)
	assert.Len(t, resp.Options, 8)
	assert.Equal(t, "s1", resp.SessionID)

	// The next message from the session is read purely as the kind answer.
	w, resp = postQuery(t, r, "s1", "bar", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.AwaitingChartType)
	assert.Equal(t, "Here's your bar chart with the data:", resp.Message)
	assert.NotEmpty(t, resp.Chart)
	require.Len(t, resp.Data, 2)

	// The context was consumed: a fresh chart request parks again.
	w, resp = postQuery(t, r, "s1", "show me a chart of sales by product", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.AwaitingChartType)
}

func TestQueryHandler_InvalidKindReprompts(t *testing.T) {
	r, dbPath := newTestRouter(t)

	_, resp := postQuery(t, r, "s2", "show me a chart of sales by product", "sales_data", dbPath)
	require.True(t, resp.AwaitingChartType)

	// An unrecognized kind keeps the context parked.
	w, resp := postQuery(t, r, "s2", "hexagon", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.AwaitingChartType)
	assert.Equal(t, "Please specify a valid chart type.", resp.Message)

	// A valid kind then resumes the parked intent.
	w, resp = postQuery(t, r, "s2", "pie", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.AwaitingChartType)
	assert.NotEmpty(t, resp.Chart)
}

func TestQueryHandler_ExplicitKindSkipsDisambiguation(t *testing.T) {
	r, dbPath := newTestRouter(t)

	w, resp := postQuery(t, r, "s3", "pie chart of sales by product", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.AwaitingChartType)
	assert.Equal(t, "Here's your pie chart with the data:", resp.Message)
	assert.NotEmpty(t, resp.Chart)
	assert.Len(t, resp.Data, 2)
}

func TestQueryHandler_TabularQuery(t *testing.T) {
	r, dbPath := newTestRouter(t)

	w, resp := postQuery(t, r, "s4", "total sales by product", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Chart)
	require.Len(t, resp.Result, 2)

	totals := map[string]float64{}
	for _, row := range resp.Result {
		totals[fmt.Sprint(row["product"])] = row["SUM(sales)"].(float64)
	}
	assert.Equal(t, 200.0, totals["Widget"])
	assert.Equal(t, 90.0, totals["Gadget"])
}

func TestQueryHandler_Conversational(t *testing.T) {
	r, dbPath := newTestRouter(t)

	w, resp := postQuery(t, r, "s5", "hey, how are things going", "sales_data", dbPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello! How can I help you today?", resp.Message)
	assert.Empty(t, resp.Result)
}

func TestQueryHandler_InvalidTableName(t *testing.T) {
	r, dbPath := newTestRouter(t)

	w, resp := postQuery(t, r, "s6", "show sales", "sales; DROP TABLE x", dbPath)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "Invalid table name")
}

func TestQueryHandler_MissingTable(t *testing.T) {
	r, dbPath := newTestRouter(t)

	w, resp := postQuery(t, r, "s7", "show sales", "no_such_table", dbPath)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "no_such_table")
}

func TestQueryHandler_MalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryHandler_ReturnsStoredExchanges(t *testing.T) {
	r, dbPath := newTestRouter(t)

	postQuery(t, r, "s8", "total sales by product", "sales_data", dbPath)

	req := httptest.NewRequest(http.MethodGet, "/api/history/s8", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var history []models.ChatHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "total sales by product", history[0].Message)
}

func TestHealthHandler(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
