package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient uses browser-like headers to avoid 406 (Not Acceptable) errors
	// Used for feed hosts that require browser-like User-Agent and headers
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple headers (like curl) to avoid 403 (Forbidden) errors
	// Used for Cloudflare-protected hosts that block browser-like User-Agents
	CloudflareClient ClientType = "cloudflare"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetries      = 2
	retryInitialBackoff = 500 * time.Millisecond
	retryMaxBackoff     = 5 * time.Second
)

// HTTPClient wraps an http.Client with a header profile, a bounded timeout
// and a small retry budget for GET fetches.
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	retries    int
}

// NewClient creates a new HTTP client with the specified type
func NewClient(clientType ClientType) *HTTPClient {
	client := &http.Client{
		Timeout: defaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
		retries:    defaultRetries,
	}
}

// SetTimeout overrides the per-request timeout (e.g. longer for audio downloads).
func (c *HTTPClient) SetTimeout(d time.Duration) {
	c.client.Timeout = d
}

// SetRetries overrides the retry budget for Get and FetchBytes.
// retries is the number of additional attempts after the first failure.
func (c *HTTPClient) SetRetries(retries int) {
	if retries < 0 {
		retries = 0
	}
	c.retries = retries
}

// Do executes an HTTP request with the appropriate headers for the client type
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get issues a GET request, retrying transient failures up to the retry
// budget with doubling backoff. A non-2xx response is returned to the caller
// without retry; transport errors are retried.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	var (
		resp    *http.Response
		lastErr error
	)

	delay := retryInitialBackoff
	for attempt := 0; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, lastErr = c.Do(req)
		if lastErr == nil {
			return resp, nil
		}

		if attempt == c.retries {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}

	return nil, fmt.Errorf("get %s after %d attempts: %w", url, c.retries+1, lastErr)
}

// FetchBytes fetches a URL and returns its body and content type.
// Non-2xx responses and zero-byte payloads are errors.
func (c *HTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status code: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("fetch %s: empty response body", url)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		// Browser-like headers to avoid 406 (Not Acceptable) errors
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

	case CloudflareClient:
		// Simple headers like curl to avoid 403 (Forbidden) errors from Cloudflare
		// Cloudflare allows simple tools like curl but blocks browser-like User-Agents
		req.Header.Set("User-Agent", "curl/8.7.1")

	default:
		// Default: use Go's default User-Agent
	}
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
