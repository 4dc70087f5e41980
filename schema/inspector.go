// Package schema discovers a table's column set at request time. Nothing is
// cached between requests: the table may have changed, so every request
// inspects the live source again.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datalens/models"
)

// Inspect introspects one table on an open connection. It returns (nil, nil)
// when the table does not exist; a non-nil error means the source itself
// failed.
func Inspect(ctx context.Context, conn *sql.DB, kind, tableName string) (*models.SchemaInfo, error) {
	var (
		columns []models.ColumnInfo
		err     error
	)

	switch kind {
	case models.KindSQLite, models.KindDuckDB:
		columns, err = inspectPragma(ctx, conn, tableName)
	case models.KindMySQL:
		columns, err = inspectMySQL(ctx, conn, tableName)
	case models.KindPostgres:
		columns, err = inspectPostgres(ctx, conn, tableName)
	case models.KindSQLServer:
		columns, err = inspectSQLServer(ctx, conn, tableName)
	default:
		return nil, fmt.Errorf("cannot inspect schema for backend %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %q: %w", tableName, err)
	}
	if len(columns) == 0 {
		return nil, nil
	}

	return &models.SchemaInfo{TableName: tableName, Columns: columns}, nil
}

// inspectPragma covers SQLite and DuckDB, which share PRAGMA table_info.
func inspectPragma(ctx context.Context, conn *sql.DB, tableName string) ([]models.ColumnInfo, error) {
	// PRAGMA arguments cannot be bound; the table name is validated as a
	// bare identifier before it gets here.
	query := fmt.Sprintf("PRAGMA table_info(%q)", tableName)
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, models.ColumnInfo{
			Name:       name,
			Type:       NormalizeType(declType),
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func inspectMySQL(ctx context.Context, conn *sql.DB, tableName string) ([]models.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`
	rows, err := conn.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var name, dataType, nullable, columnKey string
		if err := rows.Scan(&name, &dataType, &nullable, &columnKey); err != nil {
			return nil, err
		}
		columns = append(columns, models.ColumnInfo{
			Name:       name,
			Type:       NormalizeType(dataType),
			Nullable:   strings.EqualFold(nullable, "YES"),
			PrimaryKey: columnKey == "PRI",
		})
	}
	return columns, rows.Err()
}

func inspectPostgres(ctx context.Context, conn *sql.DB, tableName string) ([]models.ColumnInfo, error) {
	query := `
		SELECT c.column_name, c.data_type, c.is_nullable,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
				WHERE tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_name = $1
		ORDER BY c.ordinal_position`
	rows, err := conn.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			name, dataType, nullable string
			isPK                     bool
		)
		if err := rows.Scan(&name, &dataType, &nullable, &isPK); err != nil {
			return nil, err
		}
		columns = append(columns, models.ColumnInfo{
			Name:       name,
			Type:       NormalizeType(dataType),
			Nullable:   strings.EqualFold(nullable, "YES"),
			PrimaryKey: isPK,
		})
	}
	return columns, rows.Err()
}

func inspectSQLServer(ctx context.Context, conn *sql.DB, tableName string) ([]models.ColumnInfo, error) {
	query := `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NULL THEN 0 ELSE 1 END AS is_pk
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_NAME = @p1
		) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`
	rows, err := conn.QueryContext(ctx, query, tableName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			name, dataType, nullable string
			isPK                     int
		)
		if err := rows.Scan(&name, &dataType, &nullable, &isPK); err != nil {
			return nil, err
		}
		columns = append(columns, models.ColumnInfo{
			Name:       name,
			Type:       NormalizeType(dataType),
			Nullable:   strings.EqualFold(nullable, "YES"),
			PrimaryKey: isPK == 1,
		})
	}
	return columns, rows.Err()
}

// NormalizeType maps a backend-declared column type onto one of the semantic
// labels the rest of the system reasons about.
func NormalizeType(declared string) string {
	t := strings.ToLower(declared)
	switch {
	case strings.Contains(t, "bool") || strings.Contains(t, "bit"):
		return "boolean"
	case strings.Contains(t, "int"):
		return "integer"
	case strings.Contains(t, "decimal") || strings.Contains(t, "numeric") ||
		strings.Contains(t, "real") || strings.Contains(t, "double") ||
		strings.Contains(t, "float") || strings.Contains(t, "money"):
		return "real"
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return "datetime"
	case strings.Contains(t, "blob") || strings.Contains(t, "binary") ||
		strings.Contains(t, "bytea") || strings.Contains(t, "image"):
		return "blob"
	default:
		return "text"
	}
}
