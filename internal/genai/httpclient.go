package genai

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
)

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2000
	apiVersion       = "2023-06-01"
)

// HTTPClient implements Client against an Anthropic-style messages
// endpoint. Retryable failures are retried with exponential backoff up
// to the configured budget.
type HTTPClient struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	maxRetries  int
	backoffBase time.Duration
	log         *slog.Logger
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithModel overrides the default model identifier.
func WithModel(model string) ClientOption {
	return func(c *HTTPClient) {
		c.model = model
	}
}

// WithMaxTokens sets the default response-length bound for requests
// that do not carry their own.
func WithMaxTokens(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxTokens = n
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithBackoff sets the base delay for exponential backoff between retries.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.backoffBase = d
	}
}

// WithLogger sets the structured logger for request-level events.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.log = l
	}
}

// NewHTTPClient creates a generation client for the given endpoint.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http:        &http.Client{Timeout: 60 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		maxRetries:  2,
		backoffBase: 500 * time.Millisecond,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire types for the messages endpoint ---

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate sends the request, retrying retryable failures with
// exponential backoff. Context cancellation aborts immediately.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			c.log.Debug("retrying generation call", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: Timeout, Msg: "canceled during backoff", Err: ctx.Err()}
			}
		}

		resp, err := c.call(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var genErr *Error
		if !errors.As(err, &genErr) || !genErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// call performs a single messages-API round trip.
func (c *HTTPClient) call(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	if req.SchemaHint != "" {
		prompt = prompt + "\n\n" + req.SchemaHint
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []wireMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, &Error{Kind: BackendError, Msg: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: BackendError, Msg: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &Error{Kind: Timeout, Msg: "request timed out", Err: err}
		}
		return nil, &Error{Kind: BackendError, Msg: "transport failure", Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Kind: BackendError, Msg: "read response", Err: err}
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		// fall through to decode
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: RateLimited, Status: httpResp.StatusCode, Msg: truncate(respBody)}
	case httpResp.StatusCode >= 500:
		return nil, &Error{Kind: BackendError, Status: httpResp.StatusCode, Msg: truncate(respBody)}
	default:
		// Client-side errors (bad key, bad request) will not heal on retry.
		return nil, fmt.Errorf("genai: HTTP %d: %s", httpResp.StatusCode, truncate(respBody))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &Error{Kind: MalformedOutput, Msg: "decode response", Err: err}
	}

	text := joinText(decoded.Content)
	if text == "" {
		return nil, &Error{Kind: MalformedOutput, Msg: "response contained no text content"}
	}

	return &Response{
		Text:       text,
		Model:      decoded.Model,
		StopReason: decoded.StopReason,
	}, nil
}

// joinText concatenates all text blocks from the response content.
func joinText(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// isTimeout reports whether err is a net-level timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// truncate caps error bodies so log lines stay readable.
func truncate(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
