// Package validation checks inbound requests before any query work starts.
package validation

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"datalens/models"
)

var validate = validator.New()

// identifierPattern matches bare table identifiers. Table names reach SQL
// text (quoted), so anything outside this set is rejected up front.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// IsValidIdentifier reports whether name is usable as a bare table identifier.
func IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

type connectionRules struct {
	Kind     string `validate:"required,oneof=mysql postgresql sqlite sqlserver duckdb"`
	Port     int    `validate:"gte=0,lte=65535"`
	Database string `validate:"required"`
}

// ValidateConnection checks a caller-supplied connection config against the
// supported backend kinds. File-backed kinds (sqlite, duckdb) need no host.
func ValidateConnection(cfg models.ConnectionConfig) error {
	rules := connectionRules{
		Kind:     cfg.Kind,
		Port:     cfg.Port,
		Database: cfg.Database,
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	return nil
}
