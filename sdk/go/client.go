// Package stagelinesdk is a minimal client for the Stageline HTTP API.
package stagelinesdk

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

type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v0",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// IssueSummary is the listing view of an issue.
type IssueSummary struct {
	Name     string `json:"name"`
	Stage    string `json:"stage"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Created  string `json:"created"`
	Owner    string `json:"owner,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
}

type StageGroup struct {
	Stage  string         `json:"stage"`
	Issues []IssueSummary `json:"issues"`
}

// Issue is the full issue document.
type Issue struct {
	IssueSummary
	Extra     map[string]string `json:"extra,omitempty"`
	Body      string            `json:"body"`
	UpdatedAt string            `json:"updated_at"`
}

type Spec struct {
	Issue        string   `json:"issue"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Created      string   `json:"created"`
	Completed    *string  `json:"completed,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	ReviewRound  int      `json:"review_round"`
	UpdatedAt    string   `json:"updated_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type TCRState struct {
	Gate           string `json:"gate"`
	RunID          string `json:"run_id,omitempty"`
	LastOutcome    string `json:"last_outcome,omitempty"`
	FailureStreak  int    `json:"failure_streak"`
	LastStepName   string `json:"last_step_name,omitempty"`
	LastCommit     string `json:"last_commit,omitempty"`
	LastFullOutput string `json:"last_full_output,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// APIError wraps non-2xx responses. Code and Reasons come from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Reasons    []string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListIssues returns every stage group, or only stage when it is non-empty.
func (c *Client) ListIssues(ctx context.Context, stage string) ([]StageGroup, error) {
	endpoint := "issues"
	if stage != "" {
		endpoint += "?stage=" + url.QueryEscape(stage)
	}
	var resp []StageGroup
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetIssue(ctx context.Context, name string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodGet, "issues/"+url.PathEscape(name), nil, &resp)
	return resp, err
}

// MoveIssue asks the server to move an issue. A rejected move returns an *APIError
// with status 422 and the blocking reasons.
func (c *Client) MoveIssue(ctx context.Context, name, stage string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, "issues/"+url.PathEscape(name)+"/move", map[string]any{"stage": stage}, &resp)
	return resp, err
}

func (c *Client) ListSpecs(ctx context.Context, issue string) ([]Spec, error) {
	var resp []Spec
	err := c.do(ctx, http.MethodGet, "issues/"+url.PathEscape(issue)+"/specs", nil, &resp)
	return resp, err
}

func (c *Client) TransitionSpec(ctx context.Context, issue, spec, status string) (Spec, error) {
	var resp Spec
	endpoint := fmt.Sprintf("issues/%s/specs/%s/status", url.PathEscape(issue), url.PathEscape(spec))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) TCRState(ctx context.Context, withOutput bool) (TCRState, error) {
	endpoint := "tcr/state"
	if withOutput {
		endpoint += "?output=true"
	}
	var resp TCRState
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Reasons []string `json:"reasons"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Reasons = env.Error.Details.Reasons
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
