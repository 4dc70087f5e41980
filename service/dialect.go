package service

import (
	"fmt"
	"strings"

	"datalens/models"
)

// Dialect localizes the few SQL fragments that differ across supported
// backends: identifier quoting, bind-parameter placeholders, date-part
// extraction, and row limiting.
type Dialect struct {
	kind string
}

func DialectFor(kind string) Dialect {
	return Dialect{kind: kind}
}

func (d Dialect) Kind() string { return d.kind }

// QuoteIdent quotes a column or table identifier for the backend. Embedded
// quote characters are stripped; identifiers are validated against the live
// schema before they get here.
func (d Dialect) QuoteIdent(name string) string {
	switch d.kind {
	case models.KindMySQL:
		return "`" + strings.ReplaceAll(name, "`", "") + "`"
	case models.KindSQLServer:
		return "[" + strings.ReplaceAll(strings.ReplaceAll(name, "[", ""), "]", "") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, "") + `"`
	}
}

// Placeholder returns the bind parameter for 1-based position n.
func (d Dialect) Placeholder(n int) string {
	switch d.kind {
	case models.KindPostgres:
		return fmt.Sprintf("$%d", n)
	case models.KindSQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// DatePart returns an expression extracting a date part ("month" or "year")
// from a column, comparable against an integer.
func (d Dialect) DatePart(part, quotedCol string) string {
	switch d.kind {
	case models.KindSQLite:
		format := "%Y"
		if part == "month" {
			format = "%m"
		}
		return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", format, quotedCol)
	case models.KindPostgres, models.KindDuckDB:
		return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(part), quotedCol)
	default:
		// MYSQL and SQL Server share MONTH()/YEAR().
		return fmt.Sprintf("%s(%s)", strings.ToUpper(part), quotedCol)
	}
}

// SelectKeyword returns the SELECT keyword with any prefix-style limit the
// backend needs. SQL Server limits with TOP; everything else appends LIMIT.
func (d Dialect) SelectKeyword(limit int) string {
	if d.kind == models.KindSQLServer && limit > 0 {
		return fmt.Sprintf("SELECT TOP %d", limit)
	}
	return "SELECT"
}

// LimitSuffix returns the trailing limit clause, or "" when the backend
// limits via SelectKeyword.
func (d Dialect) LimitSuffix(limit int) string {
	if limit <= 0 || d.kind == models.KindSQLServer {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
