package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalens/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		product TEXT NOT NULL,
		quantity INTEGER,
		unit_price REAL,
		order_date DATE
	)`)
	require.NoError(t, err)
	return conn
}

func TestInspect_SQLite(t *testing.T) {
	conn := newTestDB(t)

	info, err := Inspect(context.Background(), conn, models.KindSQLite, "orders")
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "orders", info.TableName)
	assert.Equal(t, []string{"id", "product", "quantity", "unit_price", "order_date"}, info.ColumnNames())

	id := info.Column("id")
	require.NotNil(t, id)
	assert.Equal(t, "integer", id.Type)
	assert.True(t, id.PrimaryKey)

	product := info.Column("product")
	require.NotNil(t, product)
	assert.Equal(t, "text", product.Type)
	assert.False(t, product.Nullable)

	assert.Equal(t, "real", info.Column("unit_price").Type)
	assert.Equal(t, "datetime", info.Column("order_date").Type)
	assert.True(t, info.Column("quantity").Nullable)
}

func TestInspect_MissingTable(t *testing.T) {
	conn := newTestDB(t)

	info, err := Inspect(context.Background(), conn, models.KindSQLite, "no_such_table")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestInspect_UnknownBackend(t *testing.T) {
	conn := newTestDB(t)

	_, err := Inspect(context.Background(), conn, "oracle", "orders")
	assert.Error(t, err)
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		declared string
		want     string
	}{
		{"INTEGER", "integer"},
		{"bigint", "integer"},
		{"tinyint(1)", "integer"},
		{"BIT", "boolean"},
		{"BOOLEAN", "boolean"},
		{"DECIMAL(10,2)", "real"},
		{"NUMERIC", "real"},
		{"double precision", "real"},
		{"MONEY", "real"},
		{"DATE", "datetime"},
		{"datetime2", "datetime"},
		{"timestamp without time zone", "datetime"},
		{"BLOB", "blob"},
		{"VARBINARY(MAX)", "blob"},
		{"bytea", "blob"},
		{"VARCHAR(255)", "text"},
		{"nvarchar", "text"},
		{"", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.declared), "declared: %q", tt.declared)
	}
}
