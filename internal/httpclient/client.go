// Package httpclient centralizes the outbound HTTP client every provider
// adapter uses: a bounded timeout plus the "Authorization: Bearer" + JSON
// accept request builder shared across platforms.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client wraps an *http.Client with the shared bearer+JSON request shape.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func New(timeout time.Duration, baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: baseURL,
	}
}

// GetJSON issues a GET request with the standard Authorization/Accept
// headers and returns the *http.Response; the caller reads and closes its
// body.
func (c *Client) GetJSON(ctx context.Context, path string, token string, query url.Values) (*http.Response, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.setCommonHeaders(req, token)
	return c.HTTP.Do(req)
}

// PostForm issues a POST with application/x-www-form-urlencoded content,
// the shape OAuth token endpoints expect.
func (c *Client) PostForm(ctx context.Context, path string, body url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.HTTP.Do(req)
}

func (c *Client) setCommonHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
}

// ReadAll drains and closes resp.Body, bounding the work done under the
// caller's context deadline.
func ReadAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
