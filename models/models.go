package models

import "encoding/json"

// ConnectionConfig describes the relational source a single request targets.
// It is built fresh from caller-supplied fields on every request and never
// persisted.
type ConnectionConfig struct {
	Kind     string `json:"db_type" binding:"required"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database" binding:"required"`
}

// Supported backend kinds for ConnectionConfig.Kind.
const (
	KindMySQL     = "mysql"
	KindPostgres  = "postgresql"
	KindSQLite    = "sqlite"
	KindSQLServer = "sqlserver"
	KindDuckDB    = "duckdb"
)

// ColumnInfo is one column of an introspected table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // normalized: integer, real, text, datetime, boolean, blob
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// SchemaInfo is the live schema of one table, discovered per request.
type SchemaInfo struct {
	TableName string       `json:"table_name"`
	Columns   []ColumnInfo `json:"columns"`
}

// ColumnNames returns the column names in declared order.
func (s *SchemaInfo) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// HasColumn reports whether the table has a column with the exact name.
func (s *SchemaInfo) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Column returns the ColumnInfo for name, or nil when the table has no such
// column.
func (s *SchemaInfo) Column(name string) *ColumnInfo {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// SortSpec is the sort portion of a QueryIntent.
type SortSpec struct {
	Column string `json:"column,omitempty"`
	Order  string `json:"order,omitempty"` // "asc" or "desc"
}

// QueryIntent is the structured description of a data operation, produced by
// the model from a natural-language question. Every field is optional: the
// model is best-effort and may omit, invent, or garble any of them, so no
// consumer may assume a key is present.
type QueryIntent struct {
	Filters        map[string]json.RawMessage `json:"filters,omitempty"`
	GroupBy        []string                   `json:"group_by,omitempty"`
	Projections    map[string]string          `json:"projections,omitempty"`
	Sort           *SortSpec                  `json:"sort,omitempty"`
	Limit          *int                       `json:"limit,omitempty"`
	ChartType      string                     `json:"chart_type,omitempty"`
	DerivedMetrics map[string]string          `json:"derived_metrics,omitempty"`
}

// PendingChartContext is a parked, not-yet-executed intent waiting for the
// caller to pick a chart kind. At most one exists per session and it is
// consumed by the very next request from that session.
type PendingChartContext struct {
	Connection ConnectionConfig `json:"connection"`
	TableName  string           `json:"table_name"`
	Intent     QueryIntent      `json:"intent"`
}

// ResultRow maps output column names to scalar values. Date and time values
// are always serialized to YYYY-MM-DD strings before they reach a row.
type ResultRow map[string]interface{}

// ChartPoint is one (label, value) pair handed to the chart renderer.
type ChartPoint struct {
	Label string
	Value float64
}

// QueryRequest is the inbound body of POST /api/query.
type QueryRequest struct {
	Question   string           `json:"question" binding:"required"`
	TableName  string           `json:"table_name" binding:"required"`
	Connection ConnectionConfig `json:"database_config" binding:"required"`
}

// QueryResponse is the single response shape for /api/query. Exactly one of
// the variants from the API contract is populated: conversational message,
// chart-kind disambiguation, tabular result, chart plus data, or error.
type QueryResponse struct {
	Message           string      `json:"message,omitempty"`
	Options           []string    `json:"options,omitempty"`
	AwaitingChartType bool        `json:"awaiting_chart_type,omitempty"`
	Result            []ResultRow `json:"result,omitempty"`
	Chart             string      `json:"chart,omitempty"` // base64-encoded PNG
	Data              []ResultRow `json:"data,omitempty"`
	TableName         string      `json:"table_name,omitempty"`
	SessionID         string      `json:"session_id,omitempty"`
	Error             string      `json:"error,omitempty"`
	Details           string      `json:"details,omitempty"`
}

// ChatHistory is one stored question/answer exchange for a session.
type ChatHistory struct {
	Message   string `json:"message"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}
