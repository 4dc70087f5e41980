package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIntent_NoisyReply(t *testing.T) {
	reply := "Sure, here is the intent you asked for:\n" +
		"```json\n" +
		"{\n" +
		"  \"group_by\": [\"region\"], // group by the region column\n" +
		"  \"projections\": {\"sales\": \"SUM(sales)\"},\n" +
		"  \"limit\": 5\n" +
		"}\n" +
		"```\n" +
		"Let me know if you need anything else."

	intent, ok := ExtractIntent(reply)
	require.True(t, ok)
	assert.Equal(t, []string{"region"}, intent.GroupBy)
	assert.Equal(t, map[string]string{"sales": "SUM(sales)"}, intent.Projections)
	require.NotNil(t, intent.Limit)
	assert.Equal(t, 5, *intent.Limit)
}

func TestExtractIntent_PlainObject(t *testing.T) {
	intent, ok := ExtractIntent(`{"chart_type": "bar", "group_by": ["product"]}`)
	require.True(t, ok)
	assert.Equal(t, "bar", intent.ChartType)
	assert.Equal(t, []string{"product"}, intent.GroupBy)
}

func TestExtractIntent_FilterValuesStayRaw(t *testing.T) {
	intent, ok := ExtractIntent(`{"filters": {"region": "West", "price": {"gt": 100}}}`)
	require.True(t, ok)
	require.Len(t, intent.Filters, 2)
	assert.JSONEq(t, `"West"`, string(intent.Filters["region"]))
	assert.JSONEq(t, `{"gt": 100}`, string(intent.Filters["price"]))
}

func TestExtractIntent_NoJSON(t *testing.T) {
	_, ok := ExtractIntent("I could not produce a query for that question.")
	assert.False(t, ok)
}

func TestExtractIntent_MalformedJSON(t *testing.T) {
	_, ok := ExtractIntent("{ this is not json }")
	assert.False(t, ok)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, "plain text", stripFences("plain text"))
}
