package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vectorchat/internal/adapter/remote"
	"vectorchat/internal/domain"
)

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL     string
	model       string
	temperature float64
	client      *remote.Client
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      domain.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", domain.ErrMissingConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o"
	}

	return &OpenAIClient{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		model:       opts.Model,
		temperature: opts.Temperature,
		client: remote.New("openai", opts.Timeout,
			remote.WithHeader("Authorization", "Bearer "+opts.APIKey),
			remote.WithMaxRetries(opts.MaxRetries),
			remote.WithHTTPClient(opts.HTTPClient),
			remote.WithLogger(opts.Logger),
		),
	}, nil
}

// Complete sends an optional system message followed by the user message.
func (c *OpenAIClient) Complete(ctx context.Context, systemContext, userMessage string) (string, error) {
	var messages []domain.ChatMessage
	if systemContext != "" {
		messages = append(messages, domain.SystemMessage(systemContext))
	}
	messages = append(messages, domain.UserMessage(userMessage))
	return c.Chat(ctx, messages)
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrInvalidInput)
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	var resp chatResponse
	if err := c.client.Do(ctx, http.MethodPost, c.baseURL+"/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrMalformedResponse)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrMalformedResponse)
	}

	return content, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}
