package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nu11ified/sync-server/pkg/observability"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond
)

// Client is a JSON HTTP client with the adapter failure policy baked in:
// one retry with fixed backoff on transient or timeout errors, immediate
// failure on permanent ones.
type Client struct {
	platform string
	baseURL  string
	http     *http.Client
	backoff  time.Duration
	headers  map[string]string
	metrics  *observability.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. with an
// oauth2-authenticated one.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithBackoff overrides the fixed retry backoff.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithMetrics records retry counts on the given metrics.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the named platform rooted at baseURL.
func NewClient(platform, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		backoff:  defaultBackoff,
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON issues a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
// out may be nil when the response body is irrelevant.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do executes one request with the retry policy. The request body is
// re-encoded per attempt so a retry never sends a drained reader.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	err := c.attempt(ctx, method, path, body, out)
	if err == nil || !IsRetryable(err) {
		return err
	}

	if c.metrics != nil {
		c.metrics.AdapterRetriesTotal.WithLabelValues(c.platform).Inc()
	}
	observability.FromContext(ctx).WithField("platform", c.platform).WithError(err).Warn("retrying transient adapter call")

	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		return NewError(c.platform, op, KindTimeout, ctx.Err())
	}

	return c.attempt(ctx, method, path, body, out)
}

func (c *Client) attempt(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return NewError(c.platform, op, KindPermanent, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return NewError(c.platform, op, KindPermanent, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Classify(c.platform, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		classified := NewError(c.platform, op, classifyStatus(resp.StatusCode), httpErr)
		classified.StatusCode = resp.StatusCode
		return classified
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(c.platform, op, KindPermanent, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 5xx and
// 429 are transient, the rest of 4xx is permanent.
func classifyStatus(status int) Kind {
	if status >= 500 || status == http.StatusTooManyRequests {
		return KindTransient
	}
	return KindPermanent
}
