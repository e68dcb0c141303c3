package inference

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-autovoice/internal/httpc"
)

const providerClient = "client"

// Client is the OpenAI chat provider. It works with any OpenAI-compatible
// API (OpenAI, Ollama, vLLM, Together, Groq) through WithBaseURL.
type Client struct {
	config *Config
	api    *openai.Client
	logger *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &Client{
		config: cfg,
		api:    openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Chat generates a chat completion.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, WrapError(providerClient, ErrNoMessages)
	}
	start := time.Now()

	creq := c.buildRequest(req)

	var (
		resp    openai.ChatCompletionResponse
		lastErr error
	)
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var err error
		resp, err = c.api.CreateChatCompletion(ctx, creq)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = classify(providerClient, err)
		apiErr, ok := lastErr.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, lastErr
		}
		c.logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
		)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(resp.Choices) == 0 {
		return nil, WrapError(providerClient, ErrEmptyResponse)
	}
	choice := resp.Choices[0]

	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) buildRequest(req *ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.config.Temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temp),
		Stop:        req.Stop,
	}
}

// Health checks API connectivity by listing models.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return classify(providerClient, err)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// Model returns the default chat model.
func (c *Client) Model() string {
	return c.config.Model
}

// Verify Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
