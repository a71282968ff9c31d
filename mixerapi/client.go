// Package mixerapi contains minimal helpers for the Mixer REST API: current
// user and chat endpoint lookup, current broadcast, clip creation, and the
// shortcode OAuth handshake, all authenticated with the bot's user token.
package mixerapi

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
)

// DefaultBaseURL is the public REST root.
const DefaultBaseURL = "https://mixer.com/api/v1"

// TokenProvider supplies the current bearer token.
type TokenProvider interface {
	AccessToken() string
}

// Client performs bearer-authenticated REST calls.
type Client struct {
	BaseURL    string
	Tokens     TokenProvider
	HTTPClient *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mixer %s failed: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("mixer %s failed: %s: %s", e.Op, e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) url(path string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + path
}

// do issues a request with an optional JSON body and decodes a JSON response into out.
// A 204 response leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, authed bool, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.Tokens != nil {
		req.Header.Set("Authorization", "Bearer "+c.Tokens.AccessToken())
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("mixer %s: decode response: %w", op, err)
	}
	return resp.StatusCode, nil
}
