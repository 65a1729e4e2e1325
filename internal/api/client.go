// Package api is the request/response collaborator: a thin client for the
// Posto REST backend. It owns URL construction, bearer-token attachment and
// JSON decoding, and converts HTTP failures into the typed errors the rest
// of the client branches on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnauthorized covers bad credentials and expired or revoked tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404 responses, notably user-search misses.
	ErrNotFound = errors.New("not found")
	// ErrUnreachable wraps transport-level failures where no HTTP response
	// was received at all.
	ErrUnreachable = errors.New("server unreachable")
)

// TokenSource supplies the current bearer token. The session store is the
// only writer; the API client and the realtime adapter only read it.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-token TokenSource, mostly for tests.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Client struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	// The backend sends {message}; tolerate anything else.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if body.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, body.Message)
		}
		return ErrUnauthorized
	case http.StatusNotFound:
		if body.Message != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, body.Message)
		}
		return ErrNotFound
	default:
		if body.Message != "" {
			return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, body.Message)
		}
		return fmt.Errorf("request failed (status %d)", resp.StatusCode)
	}
}
