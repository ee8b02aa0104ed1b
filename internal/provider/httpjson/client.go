// Package httpjson is the JSON-over-HTTP transport shared by the vendor
// adapters. It maps HTTP failures onto provider errors and retries the
// retryable ones with exponential backoff.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	maxResponseBytes = 32 << 20
)

// Options configures a Client.
type Options struct {
	Provider   string
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	Attempts   int
	BaseDelay  time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client sends JSON requests to one vendor base URL.
type Client struct {
	provider   string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	log        zerolog.Logger
}

// New creates a Client. Zero options take defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		provider:   opts.Provider,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		headers:    opts.Headers,
		httpClient: httpClient,
		attempts:   opts.Attempts,
		baseDelay:  opts.BaseDelay,
		log:        opts.Logger,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &provider.ProviderError{
			Provider:   c.provider,
			Code:       provider.ErrorCodeInvalidRequest,
			Message:    "failed to serialize request",
			Underlying: err,
		}
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Get decodes the response of a GET into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Ping issues a single GET without retries and reports whether it
// answered with a 2xx status.
func (c *Client) Ping(ctx context.Context, path string) bool {
	return c.once(ctx, http.MethodGet, path, nil, nil) == nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	for attempt := 1; ; attempt++ {
		err := c.once(ctx, method, path, body, out)
		if err == nil || !provider.IsRetryable(err) || attempt >= c.attempts {
			return err
		}

		delay := c.baseDelay << (attempt - 1)
		if retryAfter := provider.GetRetryAfter(err); retryAfter != nil && *retryAfter > delay {
			delay = *retryAfter
		}
		c.log.Warn().
			Err(err).
			Str("provider", c.provider).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying provider request")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &provider.ProviderError{
			Provider:   c.provider,
			Code:       provider.ErrorCodeInvalidRequest,
			Message:    "failed to create request",
			Underlying: err,
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &provider.ProviderError{
			Provider:   c.provider,
			Code:       provider.ErrorCodeNetwork,
			Message:    "failed to read response",
			Underlying: err,
			Retryable:  true,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := provider.StatusError(c.provider, resp.StatusCode, extractMessage(data))
		perr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return perr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &provider.ProviderError{
			Provider:   c.provider,
			Code:       provider.ErrorCodeServer,
			Message:    "invalid JSON response",
			Underlying: err,
		}
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	perr := &provider.ProviderError{
		Provider:   c.provider,
		Code:       provider.ErrorCodeNetwork,
		Message:    "request failed",
		Underlying: err,
		Retryable:  true,
	}
	switch {
	case ctx.Err() != nil:
		// The caller gave up; retrying cannot help.
		perr.Retryable = false
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			perr.Code = provider.ErrorCodeTimeout
		}
	case provider.Classify(err) == provider.ErrorCodeTimeout:
		perr.Code = provider.ErrorCodeTimeout
	}
	return perr
}

// extractMessage pulls a human message out of common vendor error bodies:
// {"error":{"message":...}}, {"error":"..."} and {"message":"..."}.
func extractMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return truncate(strings.TrimSpace(string(body)), 200)
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	return envelope.Message
}

func parseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds >= 0 {
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
