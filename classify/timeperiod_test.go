package classify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimePeriod_Month(t *testing.T) {
	period := ParseTimePeriod("sales in June")
	require.NotNil(t, period)
	assert.Equal(t, 6, period["month"])

	period = ParseTimePeriod("what happened in dec")
	require.NotNil(t, period)
	assert.Equal(t, 12, period["month"])
}

func TestParseTimePeriod_Quarter(t *testing.T) {
	year := time.Now().Year()
	period := ParseTimePeriod("q1 results")
	require.NotNil(t, period)
	assert.Equal(t, []string{
		fmt.Sprintf("%d-01-01", year),
		fmt.Sprintf("%d-03-31", year),
	}, period["between"])
}

func TestParseTimePeriod_ExplicitYear(t *testing.T) {
	period := ParseTimePeriod("revenue in 2023")
	require.NotNil(t, period)
	assert.Equal(t, []string{"2023-01-01", "2023-12-31"}, period["between"])
}

func TestParseTimePeriod_YearHalves(t *testing.T) {
	period := ParseTimePeriod("first half of 2023")
	require.NotNil(t, period)
	assert.Equal(t, []string{"2023-01-01", "2023-06-30"}, period["between"])

	period = ParseTimePeriod("second half of 2023")
	require.NotNil(t, period)
	assert.Equal(t, []string{"2023-07-01", "2023-12-31"}, period["between"])
}

func TestParseTimePeriod_RelativeYears(t *testing.T) {
	year := time.Now().Year()

	period := ParseTimePeriod("totals this year")
	require.NotNil(t, period)
	assert.Equal(t, []string{
		fmt.Sprintf("%d-01-01", year),
		fmt.Sprintf("%d-12-31", year),
	}, period["between"])

	period = ParseTimePeriod("totals last year")
	require.NotNil(t, period)
	assert.Equal(t, []string{
		fmt.Sprintf("%d-01-01", year-1),
		fmt.Sprintf("%d-12-31", year-1),
	}, period["between"])
}

func TestParseTimePeriod_NoPeriod(t *testing.T) {
	assert.Nil(t, ParseTimePeriod("hello there"))
}
