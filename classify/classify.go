// Package classify decides whether an utterance is casual conversation or a
// data request, and extracts chart intent from free text. The heuristics are
// deliberately simple ordered keyword tables; they are not a rules engine.
package classify

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Completer is the external completion boundary the gate falls back to when
// keywords alone cannot classify an utterance.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// businessKeywords short-circuit classification: any hit means the utterance
// is a data request and no completion call is made.
var businessKeywords = []string{
	"revenue", "profit", "sales", "orders", "quantity", "price", "total", "sum", "count",
	"average", "top", "best", "most", "highest", "lowest", "show", "get", "find",
	"product", "category", "region", "customer", "month", "quarter", "year",
	"performance", "analysis", "report", "chart", "graph",
}

var chartKeywords = []string{"chart", "graph", "plot", "visualize", "show me"}

// chartKindPatterns is scanned in order, so multi-word kinds are matched
// before the single-word substrings that would shadow them ("stacked area"
// before "area", "donut" before anything containing "do").
var chartKindPatterns = []struct {
	pattern string
	kind    string
}{
	{"donut", "donut"},
	{"pie", "pie"},
	{"column", "column"},
	{"bar", "bar"},
	{"line", "line"},
	{"stacked area", "stacked_area"},
	{"stacked_area", "stacked_area"},
	{"percentage area", "percentage_area"},
	{"percentage_area", "percentage_area"},
	{"area", "area"},
}

// chartKinds is the fixed option list offered to the caller during
// chart-kind disambiguation.
var chartKinds = []string{"pie", "donut", "bar", "column", "line", "area", "stacked_area", "percentage_area"}

// ChartKinds returns the supported chart kinds in their fixed order.
func ChartKinds() []string {
	kinds := make([]string, len(chartKinds))
	copy(kinds, chartKinds)
	return kinds
}

// IsChartKind reports whether the trimmed, lower-cased text exactly names a
// supported chart kind.
func IsChartKind(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kind := range chartKinds {
		if t == kind {
			return true
		}
	}
	return false
}

// Gate classifies utterances, deferring to the completion service only when
// no keyword rule applies.
type Gate struct {
	llm Completer
}

func NewGate(llm Completer) *Gate {
	return &Gate{llm: llm}
}

// IsConversational reports whether the utterance is casual chit-chat rather
// than a data request. Rules apply in order: blank text is conversational; an
// exact chart-kind name is a data answer; a business keyword hit is a data
// request; otherwise the completion service decides, and any completion
// failure falls open toward treating the text as a data request.
func (g *Gate) IsConversational(ctx context.Context, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	lower := strings.ToLower(trimmed)
	if IsChartKind(lower) {
		return false
	}

	for _, keyword := range businessKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}

	if g.llm == nil {
		return false
	}

	prompt := fmt.Sprintf(
		"Classify as 'casual' or 'data'.\nExamples: 'hey' → casual, 'show revenue' → data\nUser: %s\nLabel:",
		text,
	)
	reply, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("classification completion failed, treating as data request")
		return false
	}

	return strings.EqualFold(strings.TrimSpace(reply), "casual")
}

// DetectChartRequest reports whether the utterance asks for a visualization.
func DetectChartRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range chartKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ParseChartKind extracts a chart kind from free text, matching patterns in
// priority order. Returns "" when no kind is named.
func ParseChartKind(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range chartKindPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.kind
		}
	}
	return ""
}
