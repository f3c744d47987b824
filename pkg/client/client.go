// Package client is a Go client for the Recollect HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/recollect/internal/types"
)

// Response types shared with the server.
type (
	HealthResponse     = types.HealthResponse
	UserHealthResponse = types.UserHealthResponse
	ExtractResponse    = types.ExtractResponse
	SearchResponse     = types.SearchResponse
	SearchHit          = types.SearchHit
	DeleteResponse     = types.DeleteResponse
	MirrorResponse     = types.MirrorResponse
)

// Config holds client settings.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Timeout bounds each request. Defaults to 2 minutes since extraction
	// embeds every prompt before responding.
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to one Recollect server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// APIError is an RFC 7807 problem returned by the server.
type APIError struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	StatusCode int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("recollect: %d %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("recollect: %d %s", e.StatusCode, e.Title)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
	}, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserHealth reports whether uuid's bundle is ready for search.
func (c *Client) UserHealth(ctx context.Context, uuid string) (*UserHealthResponse, error) {
	var out UserHealthResponse
	if err := c.do(ctx, http.MethodGet, userPath(uuid, "/health"), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract uploads a raw conversation export and replaces uuid's bundle.
func (c *Client) Extract(ctx context.Context, uuid string, export io.Reader) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := c.do(ctx, http.MethodPost, userPath(uuid, "/extract"), export, "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns the prompts most similar to query. A topK of zero uses
// the server default.
func (c *Client) Search(ctx context.Context, uuid, query string, topK int) (*SearchResponse, error) {
	body, err := json.Marshal(types.SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	var out SearchResponse
	if err := c.do(ctx, http.MethodPost, userPath(uuid, "/search"), bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mirror copies uuid's bundle into the server's fallback store.
func (c *Client) Mirror(ctx context.Context, uuid string) (*MirrorResponse, error) {
	var out MirrorResponse
	if err := c.do(ctx, http.MethodPost, userPath(uuid, "/mirror"), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes uuid's bundle. A bundle found nowhere is reported through
// the response status, not as an error.
func (c *Client) Delete(ctx context.Context, uuid string) (*DeleteResponse, error) {
	var out DeleteResponse
	err := c.do(ctx, http.MethodDelete, userPath(uuid, ""), nil, "", &out)
	if err != nil && !(IsNotFound(err) && out.Status != "") {
		return nil, err
	}
	return &out, nil
}

func userPath(uuid, suffix string) string {
	return "/api/v1/users/" + url.PathEscape(uuid) + suffix
}

// do sends a request and decodes the JSON body into out. Non-2xx responses
// become *APIError; a 404 carrying a JSON body is also decoded into out.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		_ = json.Unmarshal(data, apiErr)
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = resp.StatusCode
		}
	} else if out != nil && len(data) > 0 {
		_ = json.Unmarshal(data, out)
	}
	return apiErr
}
