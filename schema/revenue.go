package schema

import (
	"strings"

	"datalens/models"
)

// Pattern lists for derived-metric detection, in priority order. The first
// column whose name contains a pattern wins; there is no scoring.
var (
	quantityPatterns = []string{"quantity", "qty", "amount", "count", "units"}
	pricePatterns    = []string{"price", "cost", "rate", "unitprice", "unit_price"}
)

// DetectRevenueColumns scans the schema for columns usable in the
// quantity × price revenue derivation. Either result may be empty when no
// column matches its pattern list.
func DetectRevenueColumns(schema *models.SchemaInfo) (quantityCol, priceCol string) {
	if schema == nil {
		return "", ""
	}

	quantityCol = firstMatch(schema, quantityPatterns)
	priceCol = firstMatch(schema, pricePatterns)
	return quantityCol, priceCol
}

func firstMatch(schema *models.SchemaInfo, patterns []string) string {
	for _, pattern := range patterns {
		for _, col := range schema.Columns {
			if strings.Contains(strings.ToLower(col.Name), pattern) {
				return col.Name
			}
		}
	}
	return ""
}
