// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// Client wraps net/http for the workers that call external APIs.
// A zero timeout leaves bounding the call to the request context.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// PostJSON sends body as a JSON POST, attaching a bearer token when apiKey is
// non-empty. The request is rebuilt from the byte slice on every call so
// callers can safely retry with the same payload.
func (c *Client) PostJSON(ctx context.Context, url, apiKey string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return c.httpClient.Do(req)
}
