// Package mem0 provides an HTTP client for the Mem0 memory API.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted Mem0 API
const DefaultBaseURL = "https://api.mem0.ai"

// Client is an HTTP client for the Mem0 API.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// NewClient creates a new Mem0 API client.
// apiKey is passed as "Token <key>" on every request; userID scopes all memories.
func NewClient(baseURL, apiKey, userID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Types ---

// Memory is one stored memory as returned by list and search
type Memory struct {
	ID        string            `json:"id"`
	Memory    string            `json:"memory"`
	Score     float64           `json:"score,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddRequest is the body for POST /v1/memories/
type AddRequest struct {
	Messages []message         `json:"messages"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Infer    *bool             `json:"infer,omitempty"`
}

// AddResult is one entry of the add response
type AddResult struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

// --- Memories ---

// Add stores content verbatim for the configured user
func (c *Client) Add(ctx context.Context, content string, metadata map[string]string) ([]AddResult, error) {
	infer := false
	req := AddRequest{
		Messages: []message{{Role: "user", Content: content}},
		UserID:   c.userID,
		Metadata: metadata,
		Infer:    &infer,
	}
	var raw json.RawMessage
	if err := c.post(ctx, "/v1/memories/", req, &raw); err != nil {
		return nil, err
	}
	return decodeAddResults(raw)
}

// Search returns memories ranked by relevance to query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Memory, error) {
	body := map[string]any{
		"query":   query,
		"user_id": c.userID,
	}
	if limit > 0 {
		body["limit"] = limit
	}
	var raw json.RawMessage
	if err := c.post(ctx, "/v1/memories/search/", body, &raw); err != nil {
		return nil, err
	}
	return decodeMemories(raw)
}

// List returns every memory of the configured user
func (c *Client) List(ctx context.Context) ([]Memory, error) {
	params := url.Values{}
	params.Set("user_id", c.userID)
	var raw json.RawMessage
	if err := c.get(ctx, "/v1/memories/", params, &raw); err != nil {
		return nil, err
	}
	return decodeMemories(raw)
}

// Count returns the number of memories of the configured user
func (c *Client) Count(ctx context.Context) (int, error) {
	mems, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(mems), nil
}

// Mem0 returns either a bare array or {"results": [...]}
func decodeMemories(raw json.RawMessage) ([]Memory, error) {
	var list []Memory
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Results []Memory `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	return wrapped.Results, nil
}

func decodeAddResults(raw json.RawMessage) ([]AddResult, error) {
	var list []AddResult
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Results []AddResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode add response: %w", err)
	}
	return wrapped.Results, nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.parseError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil {
		if msg := apiErr.Error + apiErr.Detail; msg != "" {
			return fmt.Errorf("mem0 API error [%s]: %s", resp.Status, msg)
		}
	}
	return fmt.Errorf("mem0 API error [%s]: %s", resp.Status, string(body))
}
