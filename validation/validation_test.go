package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"datalens/models"
)

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("orders"))
	assert.True(t, IsValidIdentifier("Order_2024"))
	assert.True(t, IsValidIdentifier("t"))

	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("orders; DROP TABLE users"))
	assert.False(t, IsValidIdentifier("my table"))
	assert.False(t, IsValidIdentifier(`orders"`))
	assert.False(t, IsValidIdentifier(strings.Repeat("a", 65)))
}

func TestValidateConnection(t *testing.T) {
	assert.NoError(t, ValidateConnection(models.ConnectionConfig{
		Kind: models.KindSQLite, Database: "/tmp/test.db",
	}))
	assert.NoError(t, ValidateConnection(models.ConnectionConfig{
		Kind: models.KindPostgres, Host: "localhost", Port: 5432,
		Username: "app", Password: "pw", Database: "shop",
	}))
}

func TestValidateConnection_Rejections(t *testing.T) {
	assert.Error(t, ValidateConnection(models.ConnectionConfig{
		Kind: "oracle", Database: "shop",
	}), "unsupported backend kind")

	assert.Error(t, ValidateConnection(models.ConnectionConfig{
		Kind: models.KindMySQL, Database: "shop", Port: 70000,
	}), "port out of range")

	assert.Error(t, ValidateConnection(models.ConnectionConfig{
		Kind: models.KindMySQL,
	}), "missing database")
}
