package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"vectorchat/internal/domain"
)

const maxErrorBody = 512

// Client is the HTTP+JSON transport shared by the OpenAI and Qdrant adapters.
type Client struct {
	provider        string
	http            *http.Client
	headers         map[string]string
	maxRetries      int
	initialInterval time.Duration
	logger          *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers[key] = value
		}
	}
}

// WithMaxRetries enables retrying network failures, 429 and 5xx answers.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.initialInterval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(provider string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		provider:        provider,
		http:            &http.Client{Timeout: timeout},
		headers:         map[string]string{},
		initialInterval: 500 * time.Millisecond,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends body as JSON (when non-nil) and decodes a 2xx answer into out
// (when non-nil). Failures are classified into the domain error taxonomy.
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if attempt <= c.maxRetries {
			c.logger.Warn("retrying request", "provider", c.provider, "attempt", attempt, "error", err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx))
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, c.provider, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %w", domain.ErrNetwork, c.provider, err)
	}

	c.logger.Debug("remote call", "provider", c.provider, "method", method, "url", url,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v (body: %s)", domain.ErrMalformedResponse, c.provider, err, preview(data))
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, domain.ErrNetwork) {
		return true
	}
	var pe *domain.ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// errorMessage pulls the human-readable message out of an error body.
// OpenAI uses {"error":{"message":...}}, Qdrant {"status":{"error":...}}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error  json.RawMessage `json:"error"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := messageField(envelope.Error, "message"); msg != "" {
			return msg
		}
		if msg := messageField(envelope.Status, "error"); msg != "" {
			return msg
		}
	}
	return preview(body)
}

func messageField(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if msg, ok := obj[field].(string); ok {
		return msg
	}
	return ""
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
