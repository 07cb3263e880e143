// Package llm provides a client for Groq's OpenAI-compatible chat
// completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "property-concierge/internal/common/errors"
)

const completionsPath = "/openai/v1/chat/completions"

var (
	ErrCompletionFailed  = errors.New("COMPLETION_FAILED")
	ErrCompletionTimeout = errors.New("COMPLETION_TIMEOUT")
	ErrEmptyCompletion   = errors.New("EMPTY_COMPLETION")
	ErrMissingAPIKey     = errors.New("MISSING_API_KEY")
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Message is a single chat turn sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries everything a single completion call needs.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Client struct {
	config     *Config
	httpClient *http.Client
	logger     Logger
}

func NewClient(config *Config, log Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"component": "llm",
			"model":     config.Model,
		}),
	}
}

// Configured reports whether the client has an API key to send.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

type chatCompletionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionReply struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request and returns the trimmed reply
// text. Non-2xx responses and transport errors are retried with exponential
// backoff; a context deadline turns into ErrCompletionTimeout, and a 200
// reply that does not decode is a response-contract violation.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(chatCompletionBody{
		Model:       c.config.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {

		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrCompletionTimeout
			}
		}

		// The request body is consumed on each attempt, so rebuild the
		// request inside the loop.
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+completionsPath, bytes.NewBuffer(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

		resp, lastErr = c.httpClient.Do(httpReq)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {

			return "", ErrCompletionTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
			resp = nil

			c.logger.Warn("completion attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrCompletionTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, lastErr)
	}
	defer resp.Body.Close()

	var reply chatCompletionReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", apperrors.NewParseError(fmt.Sprintf("decode response: %v", err))
	}

	if len(reply.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(reply.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
