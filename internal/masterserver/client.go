// Package masterserver advertises the lobby on the public server list.
package masterserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PublishPath is the endpoint that registers or refreshes a server entry.
const PublishPath = "/addServerInfo.php"

// RejectedError is returned when the masterserver answered but did not
// accept the entry. Body is shown to the user as the error detail.
type RejectedError struct {
	Body string
}

func (e *RejectedError) Error() string {
	if e.Body == "" {
		return "masterserver returned an empty response"
	}
	return "masterserver rejected entry: " + e.Body
}

// Client talks to one masterserver.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a masterserver client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Publish sends the server descriptor as query parameters. Success is a
// body ending in "OK".
func (c *Client) Publish(ctx context.Context, info map[string]string) error {
	q := url.Values{}
	for k, v := range info {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PublishPath+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read publish response: %w", err)
	}
	text := strings.TrimRight(string(body), "\r\n")
	if !strings.HasSuffix(text, "OK") {
		return &RejectedError{Body: text}
	}
	return nil
}

// Healthcheck checks if the masterserver is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}
