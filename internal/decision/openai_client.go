package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat endpoint (including a
// local Ollama server) with a bounded per-attempt timeout and exponential
// backoff between retries.
type OpenAIClient struct {
	client     chatClient
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *logging.Logger
}

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAIClient)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets how many attempts are made before giving up.
func WithMaxRetries(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewOpenAIClient builds a client for the given endpoint. baseURL may be
// empty for the hosted OpenAI API.
func NewOpenAIClient(baseURL, apiKey, model string, logger *logging.Logger, opts ...OpenAIOption) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		timeout:    30 * time.Second,
		maxRetries: 3,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a single chat completion, retrying with exponential backoff
// until the retry budget is exhausted.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		if encoded, err := json.Marshal(req.Context); err == nil {
			prompt = fmt.Sprintf("%s\n\nCONTEXT: %s", prompt, encoded)
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: 0.2,
		})
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Warn("llm completion attempt failed",
				"attempt", attempt+1,
				"max_retries", c.maxRetries,
				"error", err,
			)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("decision: empty completion response")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("decision: completion failed after %d attempts: %w", c.maxRetries, lastErr)
}
