package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"datalens/models"
)

// ErrCompileFailed means the completion service returned nothing that could
// be parsed into an intent. The question itself may still be retried.
var ErrCompileFailed = errors.New("completion returned no parseable intent")

var lineCommentPattern = regexp.MustCompile(`//.*`)

// CompileIntent asks the model to translate a question into a structured
// intent against the given live schema. No semantic validation happens here;
// referenced columns are checked later by the executor, because the compiler
// cannot assume its own output quality.
func (a *AIService) CompileIntent(ctx context.Context, question string, schema *models.SchemaInfo) (*models.QueryIntent, error) {
	prompt := BuildIntentPrompt(question, schema)

	reply, err := a.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}

	intent, ok := ExtractIntent(reply)
	if !ok {
		log.WithField("reply", reply).Warn("could not extract intent JSON from completion")
		return nil, ErrCompileFailed
	}

	return intent, nil
}

// ExtractIntent pulls the first top-level brace-delimited JSON object out of
// near-JSON model output, after stripping inline // comments, and parses it.
// The scan is greedy: everything from the first '{' to the last '}'.
func ExtractIntent(text string) (*models.QueryIntent, bool) {
	cleaned := lineCommentPattern.ReplaceAllString(stripFences(text), "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var intent models.QueryIntent
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &intent); err != nil {
		return nil, false
	}

	return &intent, true
}
