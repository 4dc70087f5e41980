// Package service compiles validated query intents into parameterized SQL
// against an arbitrary table and shapes the results for tables and charts.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"datalens/models"
	"datalens/schema"
)

// ErrColumnNotFound means the intent referenced a column the live schema
// does not have, in a position where skipping it silently is not possible.
var ErrColumnNotFound = errors.New("column not found")

// ErrNoDerivedMetric means revenue was requested but the table has no
// detectable quantity or price column.
var ErrNoDerivedMetric = errors.New("revenue calculation not possible")

var aggPattern = regexp.MustCompile(`^\s*(\w+)\(\s*(\w+)\s*\)`)

// Executor runs one validated intent against one open connection. It holds
// no state beyond the request: the connection is owned and closed by the
// caller, and the schema was introspected for this request only.
type Executor struct {
	conn        *sql.DB
	info        *models.SchemaInfo
	dialect     Dialect
	quantityCol string
	priceCol    string
}

func NewExecutor(conn *sql.DB, kind string, info *models.SchemaInfo) *Executor {
	quantityCol, priceCol := schema.DetectRevenueColumns(info)
	return &Executor{
		conn:        conn,
		info:        info,
		dialect:     DialectFor(kind),
		quantityCol: quantityCol,
		priceCol:    priceCol,
	}
}

// IsRevenueIntent reports whether the intent asks for the quantity × price
// derivation, either via derived_metrics or by mentioning revenue in a
// projection.
func IsRevenueIntent(intent *models.QueryIntent) bool {
	if len(intent.DerivedMetrics) > 0 {
		return true
	}
	for key, expr := range intent.Projections {
		k := strings.ToLower(key)
		v := strings.ToLower(expr)
		if strings.Contains(k, "revenue") || strings.Contains(v, "revenue") || strings.Contains(v, "quantity * price") {
			return true
		}
	}
	return false
}

// Execute dispatches the intent to the matching query shape and returns
// table-ready rows.
func (e *Executor) Execute(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	switch {
	case IsRevenueIntent(intent):
		return e.ExecuteRevenue(ctx, intent)
	case len(intent.GroupBy) > 0 && len(intent.Projections) > 0:
		return e.ExecuteAggregated(ctx, intent)
	case len(intent.Projections) > 0:
		return e.ExecuteScalarAggregate(ctx, intent)
	default:
		return e.ExecuteTabular(ctx, intent)
	}
}

// ---- filters ----

// compileFilters turns the intent's filter map into a WHERE clause. Keys
// that do not name a live column are skipped silently: the intent comes from
// a best-effort model and hallucinated columns must not fail the query.
func (e *Executor) compileFilters(filters map[string]json.RawMessage) (string, []interface{}) {
	var conds []string
	var args []interface{}

	for _, key := range sortedKeys(filters) {
		if !e.info.HasColumn(key) {
			log.WithField("column", key).Debug("dropping filter on unknown column")
			continue
		}
		quoted := e.dialect.QuoteIdent(key)
		raw := filters[key]

		var opMap map[string]json.RawMessage
		if err := json.Unmarshal(raw, &opMap); err == nil && opMap != nil {
			if strings.HasSuffix(strings.ToLower(key), "date") {
				conds, args = e.appendDateFilter(conds, args, quoted, opMap)
			} else {
				conds, args = e.appendOperatorFilter(conds, args, quoted, opMap)
			}
			continue
		}

		var scalar interface{}
		if err := json.Unmarshal(raw, &scalar); err != nil || scalar == nil {
			continue
		}
		if s, ok := scalar.(string); ok && s == "" {
			continue
		}
		if _, isList := scalar.([]interface{}); isList {
			continue
		}
		args = append(args, scalar)
		conds = append(conds, fmt.Sprintf("%s = %s", quoted, e.dialect.Placeholder(len(args))))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// appendDateFilter handles the date-specific filter shapes {"month": m},
// {"year": y} and {"between": [start, end]} (inclusive).
func (e *Executor) appendDateFilter(conds []string, args []interface{}, quoted string, opMap map[string]json.RawMessage) ([]string, []interface{}) {
	if raw, ok := opMap["month"]; ok {
		if v, ok := decodeScalar(raw); ok {
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = %s", e.dialect.DatePart("month", quoted), e.dialect.Placeholder(len(args))))
		}
		return conds, args
	}
	if raw, ok := opMap["between"]; ok {
		if bounds, ok := decodeBounds(raw); ok {
			args = append(args, bounds[0])
			first := e.dialect.Placeholder(len(args))
			args = append(args, bounds[1])
			second := e.dialect.Placeholder(len(args))
			conds = append(conds, fmt.Sprintf("%s BETWEEN %s AND %s", quoted, first, second))
		}
		return conds, args
	}
	if raw, ok := opMap["year"]; ok {
		if v, ok := decodeScalar(raw); ok {
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = %s", e.dialect.DatePart("year", quoted), e.dialect.Placeholder(len(args))))
		}
	}
	return conds, args
}

var comparisonOps = []struct {
	key string
	op  string
}{
	{"gt", ">"}, {"gte", ">="}, {"lt", "<"}, {"lte", "<="}, {"eq", "="},
}

// appendOperatorFilter handles {"gt": v}, {"gte": v}, {"lt": v}, {"lte": v},
// {"eq": v} and {"between": [lo, hi]}.
func (e *Executor) appendOperatorFilter(conds []string, args []interface{}, quoted string, opMap map[string]json.RawMessage) ([]string, []interface{}) {
	for _, c := range comparisonOps {
		raw, ok := opMap[c.key]
		if !ok {
			continue
		}
		if v, ok := decodeScalar(raw); ok {
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s %s %s", quoted, c.op, e.dialect.Placeholder(len(args))))
		}
	}
	if raw, ok := opMap["between"]; ok {
		if bounds, ok := decodeBounds(raw); ok {
			args = append(args, bounds[0])
			first := e.dialect.Placeholder(len(args))
			args = append(args, bounds[1])
			second := e.dialect.Placeholder(len(args))
			conds = append(conds, fmt.Sprintf("%s BETWEEN %s AND %s", quoted, first, second))
		}
	}
	return conds, args
}

// ---- revenue ----

func (e *Executor) revenueExpr() string {
	return fmt.Sprintf("SUM(%s * %s)", e.dialect.QuoteIdent(e.quantityCol), e.dialect.QuoteIdent(e.priceCol))
}

// ExecuteRevenue computes SUM(quantity × price), grouped by the first
// group_by column when one is present, otherwise as a single total.
func (e *Executor) ExecuteRevenue(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	if e.quantityCol == "" || e.priceCol == "" {
		return nil, fmt.Errorf("%w: missing quantity or price columns in table '%s'", ErrNoDerivedMetric, e.info.TableName)
	}
	if len(intent.GroupBy) > 0 {
		return e.groupedRevenue(ctx, intent)
	}
	return e.totalRevenue(ctx, intent)
}

func (e *Executor) groupedRevenue(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	groupCol := intent.GroupBy[0]
	if !e.info.HasColumn(groupCol) {
		return nil, fmt.Errorf("%w: column '%s' not found in table '%s'", ErrColumnNotFound, groupCol, e.info.TableName)
	}

	where, args := e.compileFilters(intent.Filters)
	limit := limitOf(intent)
	quotedGroup := e.dialect.QuoteIdent(groupCol)

	query := fmt.Sprintf("%s %s, %s FROM %s%s GROUP BY %s",
		e.dialect.SelectKeyword(limit), quotedGroup, e.revenueExpr(),
		e.dialect.QuoteIdent(e.info.TableName), where, quotedGroup)
	if intent.Sort != nil {
		query += " ORDER BY " + e.revenueExpr() + " " + sortDirection(intent.Sort)
	}
	query += e.dialect.LimitSuffix(limit)

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("revenue query failed: %w", err)
	}
	defer rows.Close()

	var results []models.ResultRow
	for rows.Next() {
		var label interface{}
		var revenue sql.NullFloat64
		if err := rows.Scan(&label, &revenue); err != nil {
			return nil, err
		}
		results = append(results, models.ResultRow{
			groupCol:  formatValue(label),
			"revenue": round2(revenue.Float64),
		})
	}
	return results, rows.Err()
}

func (e *Executor) totalRevenue(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	where, args := e.compileFilters(intent.Filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s",
		e.revenueExpr(), e.dialect.QuoteIdent(e.info.TableName), where)

	var total sql.NullFloat64
	if err := e.conn.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("revenue query failed: %w", err)
	}

	formatted := round2(total.Float64)
	return []models.ResultRow{{
		"total_revenue": formatted,
		"message":       fmt.Sprintf("Total revenue: $%s", formatCurrency(formatted)),
	}}, nil
}

// ---- generic aggregation ----

// resolveAggregation parses a projection's "FUNC(column)" descriptor. When
// the descriptor does not parse, or names a missing column, it falls back to
// SUM over the projection key's own column if that exists.
func (e *Executor) resolveAggregation(projKey, projExpr string) (fn, expr, outKey string, err error) {
	match := aggPattern.FindStringSubmatch(projExpr)
	if match != nil {
		fn = strings.ToUpper(match[1])
		aggCol := match[2]
		if e.info.HasColumn(aggCol) {
			return fn, fmt.Sprintf("%s(%s)", aggFuncName(fn), e.dialect.QuoteIdent(aggCol)),
				fmt.Sprintf("%s(%s)", fn, projKey), nil
		}
		if e.info.HasColumn(projKey) {
			return "SUM", fmt.Sprintf("SUM(%s)", e.dialect.QuoteIdent(projKey)),
				fmt.Sprintf("SUM(%s)", projKey), nil
		}
		return "", "", "", fmt.Errorf("%w: column '%s' or '%s' not found in table '%s'",
			ErrColumnNotFound, aggCol, projKey, e.info.TableName)
	}

	if e.info.HasColumn(projKey) {
		return "SUM", fmt.Sprintf("SUM(%s)", e.dialect.QuoteIdent(projKey)),
			fmt.Sprintf("SUM(%s)", projKey), nil
	}
	return "", "", "", fmt.Errorf("%w: column '%s' not found in table '%s'",
		ErrColumnNotFound, projKey, e.info.TableName)
}

// ExecuteAggregated runs a grouped, non-revenue aggregation.
func (e *Executor) ExecuteAggregated(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	groupCol := intent.GroupBy[0]
	if !e.info.HasColumn(groupCol) {
		return nil, fmt.Errorf("%w: column '%s' not found in table '%s'", ErrColumnNotFound, groupCol, e.info.TableName)
	}

	projKey, projExpr := firstProjection(intent.Projections)
	fn, aggExpr, outKey, err := e.resolveAggregation(projKey, projExpr)
	if err != nil {
		return nil, err
	}

	where, args := e.compileFilters(intent.Filters)
	limit := limitOf(intent)
	quotedGroup := e.dialect.QuoteIdent(groupCol)

	query := fmt.Sprintf("%s %s, %s FROM %s%s GROUP BY %s",
		e.dialect.SelectKeyword(limit), quotedGroup, aggExpr,
		e.dialect.QuoteIdent(e.info.TableName), where, quotedGroup)
	if intent.Sort != nil {
		query += " ORDER BY " + aggExpr + " " + sortDirection(intent.Sort)
	}
	query += e.dialect.LimitSuffix(limit)

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregation query failed: %w", err)
	}
	defer rows.Close()

	var results []models.ResultRow
	for rows.Next() {
		var label, value interface{}
		if err := rows.Scan(&label, &value); err != nil {
			return nil, err
		}
		results = append(results, models.ResultRow{
			groupCol: formatValue(label),
			outKey:   formatAggValue(fn, value),
		})
	}
	return results, rows.Err()
}

// ExecuteScalarAggregate runs an ungrouped single aggregation.
func (e *Executor) ExecuteScalarAggregate(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	projKey, projExpr := firstProjection(intent.Projections)
	fn, aggExpr, outKey, err := e.resolveAggregation(projKey, projExpr)
	if err != nil {
		return nil, err
	}

	where, args := e.compileFilters(intent.Filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s",
		aggExpr, e.dialect.QuoteIdent(e.info.TableName), where)

	var value interface{}
	if err := e.conn.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return nil, fmt.Errorf("aggregation query failed: %w", err)
	}

	formatted := formatAggValue(fn, value)
	return []models.ResultRow{{
		outKey:    formatted,
		"message": fmt.Sprintf("Total %s of %s: %v", strings.ToLower(fn), projKey, formatted),
	}}, nil
}

// ---- tabular fallback ----

// ExecuteTabular returns every column of every matching row, honoring only
// sort and limit. An unknown sort column drops the sort rather than failing.
func (e *Executor) ExecuteTabular(ctx context.Context, intent *models.QueryIntent) ([]models.ResultRow, error) {
	where, args := e.compileFilters(intent.Filters)
	limit := limitOf(intent)

	quotedCols := make([]string, 0, len(e.info.Columns))
	for _, col := range e.info.Columns {
		quotedCols = append(quotedCols, e.dialect.QuoteIdent(col.Name))
	}

	query := fmt.Sprintf("%s %s FROM %s%s",
		e.dialect.SelectKeyword(limit), strings.Join(quotedCols, ", "),
		e.dialect.QuoteIdent(e.info.TableName), where)
	if intent.Sort != nil && intent.Sort.Column != "" && e.info.HasColumn(intent.Sort.Column) {
		query += " ORDER BY " + e.dialect.QuoteIdent(intent.Sort.Column) + " " + sortDirection(intent.Sort)
	}
	query += e.dialect.LimitSuffix(limit)

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []models.ResultRow
	for rows.Next() {
		values := make([]interface{}, len(e.info.Columns))
		pointers := make([]interface{}, len(values))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(models.ResultRow, len(values))
		for i, col := range e.info.Columns {
			row[col.Name] = formatValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ---- chart data ----

// ChartData returns raw (label, value) pairs for the renderer. It applies
// the identical revenue-vs-generic decision as Execute so the chart and the
// tabular result always come from the same semantics.
func (e *Executor) ChartData(ctx context.Context, intent *models.QueryIntent) ([]models.ChartPoint, error) {
	if len(intent.GroupBy) == 0 {
		return nil, fmt.Errorf("%w: chart data requires a grouping column", ErrColumnNotFound)
	}
	groupCol := intent.GroupBy[0]
	if !e.info.HasColumn(groupCol) {
		return nil, fmt.Errorf("%w: column '%s' not found in table '%s'", ErrColumnNotFound, groupCol, e.info.TableName)
	}

	projKey, projExpr := firstProjection(intent.Projections)

	var aggExpr string
	wantsRevenue := strings.Contains(strings.ToLower(projKey), "revenue") ||
		strings.Contains(strings.ToLower(projExpr), "quantity * price")
	if wantsRevenue && e.quantityCol != "" && e.priceCol != "" {
		aggExpr = e.revenueExpr()
	} else {
		var err error
		_, aggExpr, _, err = e.resolveAggregation(projKey, projExpr)
		if err != nil {
			return nil, err
		}
	}

	where, args := e.compileFilters(intent.Filters)
	quotedGroup := e.dialect.QuoteIdent(groupCol)
	query := fmt.Sprintf("SELECT %s, %s FROM %s%s GROUP BY %s",
		quotedGroup, aggExpr, e.dialect.QuoteIdent(e.info.TableName), where, quotedGroup)

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chart data query failed: %w", err)
	}
	defer rows.Close()

	var points []models.ChartPoint
	for rows.Next() {
		var label interface{}
		var value sql.NullFloat64
		if err := rows.Scan(&label, &value); err != nil {
			return nil, err
		}
		points = append(points, models.ChartPoint{
			Label: fmt.Sprint(formatValue(label)),
			Value: value.Float64,
		})
	}
	return points, rows.Err()
}

// ---- helpers ----

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// firstProjection returns a deterministic first entry of the projections map.
func firstProjection(projections map[string]string) (key, expr string) {
	keys := make([]string, 0, len(projections))
	for k := range projections {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", ""
	}
	sort.Strings(keys)
	return keys[0], projections[keys[0]]
}

func decodeScalar(raw json.RawMessage) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// decodeBounds decodes a between value, which must be a 2-element array.
func decodeBounds(raw json.RawMessage) ([2]interface{}, bool) {
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 2 {
		return [2]interface{}{}, false
	}
	return [2]interface{}{list[0], list[1]}, true
}

func limitOf(intent *models.QueryIntent) int {
	if intent.Limit != nil && *intent.Limit > 0 {
		return *intent.Limit
	}
	return 0
}

func sortDirection(s *models.SortSpec) string {
	if s != nil && strings.EqualFold(s.Order, "desc") {
		return "DESC"
	}
	return "ASC"
}

func aggFuncName(fn string) string {
	switch fn {
	case "SUM", "COUNT", "AVG", "MAX", "MIN":
		return fn
	default:
		return "SUM"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatAggValue applies the per-function result formatting: counts are
// integers, averages round to two decimals, everything else passes through.
func formatAggValue(fn string, value interface{}) interface{} {
	if value == nil {
		if fn == "COUNT" {
			return int64(0)
		}
		return 0.0
	}
	switch fn {
	case "COUNT":
		return toInt64(value)
	case "AVG":
		return round2(toFloat64(value))
	default:
		return formatValue(value)
	}
}

// formatValue normalizes driver-specific scalars: times become YYYY-MM-DD
// strings, byte slices become strings.
func formatValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case []byte:
		return string(t)
	default:
		return v
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		var n int64
		fmt.Sscan(string(t), &n)
		return n
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case []byte:
		var f float64
		fmt.Sscan(string(t), &f)
		return f
	default:
		return 0
	}
}

// formatCurrency renders a rounded amount with thousands separators, e.g.
// 1234567.5 -> "1,234,567.50".
func formatCurrency(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(intPart[i : i+3])
	}

	out := b.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}
