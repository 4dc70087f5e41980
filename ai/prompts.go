package ai

import (
	"fmt"
	"strings"

	"datalens/models"
)

// BuildSchemaPrompt renders the table's live schema plus the fixed business
// heuristics the model should apply when mapping questions onto it.
func BuildSchemaPrompt(schema *models.SchemaInfo) string {
	if schema == nil {
		return ""
	}

	descriptions := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		desc := fmt.Sprintf("%s (%s)", col.Name, col.Type)
		if col.PrimaryKey {
			desc += " [PRIMARY KEY]"
		}
		descriptions = append(descriptions, desc)
	}

	var b strings.Builder
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(fmt.Sprintf("Table: %s\n", schema.TableName))
	b.WriteString(fmt.Sprintf("Columns: %s\n\n", strings.Join(descriptions, ", ")))
	b.WriteString("BUSINESS LOGIC UNDERSTANDING:\n")
	b.WriteString("- Look for patterns like \"revenue\" = quantity × price columns\n")
	b.WriteString("- \"sales\" typically means revenue or quantity sold\n")
	b.WriteString("- \"profit\" = revenue (if no cost data available)\n")
	b.WriteString("- \"performance\" usually means revenue or quantity metrics\n")
	b.WriteString("- \"top/best/most\" implies ORDER BY DESC with LIMIT\n")
	b.WriteString("- \"total\" implies SUM aggregation\n")
	b.WriteString("- \"average\" implies AVG aggregation\n")

	return b.String()
}

// BuildIntentPrompt embeds the schema prompt, the required JSON response
// shape, and two worked examples parameterized with the table's own first and
// second column names so the model has schema-grounded exemplars.
func BuildIntentPrompt(question string, schema *models.SchemaInfo) string {
	columns := schema.ColumnNames()

	firstCol := "column"
	if len(columns) > 0 {
		firstCol = columns[0]
	}
	secondCol := "value"
	if len(columns) > 1 {
		secondCol = columns[1]
	}

	var b strings.Builder
	b.WriteString(BuildSchemaPrompt(schema))
	b.WriteString("\nRESPONSE FORMAT:\n")
	b.WriteString("Return ONLY valid JSON with these keys:\n")
	b.WriteString("- filters: {} (conditions to apply)\n")
	b.WriteString("- group_by: [] (columns to group by)\n")
	b.WriteString("- projections: {} (what to calculate/show)\n")
	b.WriteString("- sort: {} (sorting configuration)\n")
	b.WriteString("- limit: number (for top N results)\n")
	b.WriteString("- chart_type: \"pie\"/\"bar\"/\"line\" (only if explicitly requested)\n")
	b.WriteString("- derived_metrics: {} (for calculated fields like revenue)\n\n")
	b.WriteString(fmt.Sprintf("AVAILABLE COLUMNS: %s\n\n", strings.Join(columns, ", ")))
	b.WriteString("EXAMPLES:\n")
	b.WriteString("1. \"How much revenue did we make?\"\n")
	b.WriteString(fmt.Sprintf("   → {\"filters\": {\"%s\": \"value\"}, \"projections\": {\"revenue\": \"SUM(quantity_col * price_col)\"}, \"derived_metrics\": {\"revenue\": \"quantity_col * price_col\"}}\n", firstCol))
	b.WriteString(fmt.Sprintf("2. \"Most selling %s\"\n", firstCol))
	b.WriteString(fmt.Sprintf("   → {\"group_by\": [\"%s\"], \"projections\": {\"%s\": \"SUM(%s)\"}, \"sort\": {\"column\": \"SUM(%s)\", \"order\": \"desc\"}, \"limit\": 1}\n", firstCol, secondCol, secondCol, secondCol))
	b.WriteString("3. \"Show me a pie chart\"\n")
	b.WriteString(fmt.Sprintf("   → {\"group_by\": [\"%s\"], \"projections\": {\"value\": \"SUM(%s)\"}, \"chart_type\": \"pie\"}\n\n", firstCol, secondCol))
	b.WriteString(fmt.Sprintf("User Question: %s\n\n", question))
	b.WriteString(fmt.Sprintf("Analyze the business intent for table '%s' and return the appropriate JSON structure.", schema.TableName))

	return b.String()
}
