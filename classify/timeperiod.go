package classify

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

var quarters = []struct {
	names      []string
	start, end int
}{
	{[]string{"q1", "first quarter"}, 1, 3},
	{[]string{"q2", "second quarter"}, 4, 6},
	{[]string{"q3", "third quarter"}, 7, 9},
	{[]string{"q4", "fourth quarter"}, 10, 12},
}

var months = []struct {
	name string
	num  int
}{
	{"january", 1}, {"jan", 1}, {"february", 2}, {"feb", 2}, {"march", 3}, {"mar", 3},
	{"april", 4}, {"apr", 4}, {"may", 5}, {"june", 6}, {"jun", 6},
	{"july", 7}, {"jul", 7}, {"august", 8}, {"aug", 8}, {"september", 9}, {"sep", 9},
	{"october", 10}, {"oct", 10}, {"november", 11}, {"nov", 11}, {"december", 12}, {"dec", 12},
}

// ParseTimePeriod turns a natural-language time phrase into a date filter
// shape the executor understands: {"month": n}, {"year": y} or
// {"between": [start, end]}. Returns nil when no period is recognized.
func ParseTimePeriod(text string) map[string]interface{} {
	lower := strings.ToLower(strings.TrimSpace(text))
	currentYear := time.Now().Year()

	for _, q := range quarters {
		for _, name := range q.names {
			if strings.Contains(lower, name) {
				return map[string]interface{}{"between": []string{
					fmt.Sprintf("%d-%02d-01", currentYear, q.start),
					fmt.Sprintf("%d-%02d-31", currentYear, q.end),
				}}
			}
		}
	}

	for _, m := range months {
		if strings.Contains(lower, m.name) {
			return map[string]interface{}{"month": m.num}
		}
	}

	if match := yearPattern.FindString(lower); match != "" {
		switch {
		case strings.Contains(lower, "first 6 months") || strings.Contains(lower, "first half"):
			return map[string]interface{}{"between": []string{match + "-01-01", match + "-06-30"}}
		case strings.Contains(lower, "last 6 months") || strings.Contains(lower, "second half"):
			return map[string]interface{}{"between": []string{match + "-07-01", match + "-12-31"}}
		default:
			return map[string]interface{}{"between": []string{match + "-01-01", match + "-12-31"}}
		}
	}

	if strings.Contains(lower, "this year") {
		return map[string]interface{}{"between": []string{
			fmt.Sprintf("%d-01-01", currentYear),
			fmt.Sprintf("%d-12-31", currentYear),
		}}
	}
	if strings.Contains(lower, "last year") {
		return map[string]interface{}{"between": []string{
			fmt.Sprintf("%d-01-01", currentYear-1),
			fmt.Sprintf("%d-12-31", currentYear-1),
		}}
	}

	return nil
}
