package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"datalens/cache"
)

// ErrNoCompletion is returned when the completion service produced no usable
// text at all.
var ErrNoCompletion = errors.New("no response from completion service")

// AIService wraps an OpenAI-compatible chat-completions endpoint. It is the
// single boundary through which the rest of the system talks to a language
// model.
type AIService struct {
	apiKey             string
	modelName          string
	apiURL             string
	cache              *cache.Cache
	httpClient         *http.Client
	lastRequestTime    time.Time
	requestMutex       sync.Mutex
	minRequestInterval time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func New(apiKey, modelName, apiURL string, cache *cache.Cache) *AIService {
	return &AIService{
		apiKey:             apiKey,
		modelName:          modelName,
		apiURL:             apiURL,
		cache:              cache,
		httpClient:         &http.Client{Timeout: 120 * time.Second},
		minRequestInterval: 500 * time.Millisecond, // Minimum 500ms between requests
	}
}

// rateLimit ensures minimum time between requests to prevent burst rate errors
func (a *AIService) rateLimit() {
	a.requestMutex.Lock()
	defer a.requestMutex.Unlock()

	now := time.Now()
	sinceLast := now.Sub(a.lastRequestTime)
	if sinceLast < a.minRequestInterval {
		time.Sleep(a.minRequestInterval - sinceLast)
	}

	a.lastRequestTime = time.Now()
}

// Complete sends one prompt and returns the model's raw reply text.
func (a *AIService) Complete(ctx context.Context, prompt string) (string, error) {
	a.rateLimit()

	reqBody := chatRequest{
		Model:    a.modelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff on rate limiting and transient errors.
	maxRetries := 3
	baseDelay := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			log.Debugf("retrying completion after %v (attempt %d/%d)", delay, attempt, maxRetries)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			a.rateLimit()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if attempt < maxRetries {
				continue
			}
			return "", fmt.Errorf("failed to send request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if attempt < maxRetries {
				continue
			}
			return "", fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < maxRetries {
				continue
			}
			return "", fmt.Errorf("completion API returned status %d after %d retries", resp.StatusCode, maxRetries)
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, string(body))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("completion API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", ErrNoCompletion
		}

		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("max retries exceeded")
}

// ConversationalReply answers a casual message directly, caching identical
// prompts for a short window.
func (a *AIService) ConversationalReply(ctx context.Context, message string) (string, error) {
	cacheKey := "chat_prompt:" + message
	if cached, found := a.cache.Get(cacheKey); found {
		return cached.(string), nil
	}

	reply, err := a.Complete(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to generate chat response: %w", err)
	}

	reply = stripFences(reply)
	a.cache.SetDefault(cacheKey, reply)
	return reply, nil
}

// stripFences removes markdown code fences the model sometimes wraps replies in.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
