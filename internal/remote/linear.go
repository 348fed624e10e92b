// Package remote resolves issues against an external tracker.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"stageline/internal/config"
	"stageline/internal/domain"
)

const defaultMaxElapsed = 20 * time.Second

// LinearResolver maps issue slugs to Linear identifiers such as ENG-42.
type LinearResolver struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	MaxElapsed time.Duration
	Logger     *slog.Logger
}

// NewLinearResolver reads the API key from the environment variable named in cfg.
func NewLinearResolver(cfg *config.Config) (*LinearResolver, error) {
	envName := cfg.Remote.Linear.APIKeyEnv
	key := strings.TrimSpace(os.Getenv(envName))
	if key == "" {
		return nil, domain.UsageError{Msg: fmt.Sprintf("Linear API key not set; export %s", envName)}
	}
	return &LinearResolver{
		Endpoint:   cfg.Remote.Linear.Endpoint,
		APIKey:     key,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type issuesResponse struct {
	Data struct {
		Issues struct {
			Nodes []linearIssue `json:"nodes"`
		} `json:"issues"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type linearIssue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
}

const issuesByTitleQuery = `query IssuesByTitle($term: String!) {
  issues(first: 10, filter: { title: { containsIgnoreCase: $term } }) {
    nodes { id identifier title }
  }
}`

// Resolve finds the tracker issue whose title slugifies to slug. The title search
// only narrows the candidates; a candidate without an exact slug match is never taken.
func (r *LinearResolver) Resolve(ctx context.Context, slug string) (string, error) {
	term := strings.ReplaceAll(slug, "-", " ")
	var resp issuesResponse
	if err := r.execute(ctx, graphQLRequest{Query: issuesByTitleQuery, Variables: map[string]any{"term": term}}, &resp); err != nil {
		return "", err
	}
	nodes := resp.Data.Issues.Nodes
	for _, n := range nodes {
		if Slugify(n.Title) == slug {
			return n.Identifier, nil
		}
	}
	if len(nodes) < 2 {
		return "", domain.ErrNotFound
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.Identifier)
	}
	return "", fmt.Errorf("slug %s matches several Linear issues: %s", slug, strings.Join(ids, ", "))
}

func (r *LinearResolver) execute(ctx context.Context, req graphQLRequest, out *issuesResponse) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.MaxElapsed
	if bo.MaxElapsedTime == 0 {
		bo.MaxElapsedTime = defaultMaxElapsed
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", r.APIKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			r.log().Debug("linear request failed", "attempt", attempt, "err", err)
			return fmt.Errorf("linear request: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read linear response: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			r.log().Debug("linear retryable status", "attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("linear API status %d", resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("linear API error: %s (status %d)", strings.TrimSpace(string(data)), resp.StatusCode))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("parse linear response: %w", err))
		}
		if len(out.Errors) > 0 {
			msgs := make([]string, len(out.Errors))
			for i, e := range out.Errors {
				msgs[i] = e.Message
			}
			return backoff.Permanent(fmt.Errorf("linear GraphQL errors: %s", strings.Join(msgs, "; ")))
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (r *LinearResolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
