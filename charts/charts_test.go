package charts

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalens/models"
)

func testPoints() []models.ChartPoint {
	return []models.ChartPoint{
		{Label: "Widget", Value: 150},
		{Label: "Gadget", Value: 90},
		{Label: "Gizmo", Value: 60},
	}
}

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func TestRender_AllKinds(t *testing.T) {
	kinds := []string{"pie", "donut", "bar", "column", "line", "area", "stacked_area", "percentage_area"}

	for _, kind := range kinds {
		encoded, err := Render(kind, testPoints())
		require.NoError(t, err, "kind: %s", kind)
		require.NotEmpty(t, encoded, "kind: %s", kind)

		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err, "kind: %s", kind)
		require.Greater(t, len(raw), len(pngHeader))
		assert.Equal(t, pngHeader, raw[:len(pngHeader)], "kind %s must render a PNG", kind)
	}
}

func TestRender_UnknownKindFallsBackToBar(t *testing.T) {
	encoded, err := Render("sparkline", testPoints())
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}

func TestRender_NoData(t *testing.T) {
	_, err := Render("bar", nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Render("pie", []models.ChartPoint{})
	assert.ErrorIs(t, err, ErrNoData)
}
