// Package platformapi is the egress client for the source-code-hosting
// platform's HTTP API (§6: users/projects/issues/notes/groups/snippets), used
// by Verification's group-member lookup and by Retrieval's per-kind fetch.
// Every call is rate-limited and wrapped in the shared retry policy; a 404 is
// translated into a retry.PermanentError so it is never retried, per spec
// §4.4 and §7.
package platformapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gitlab-triage/event-triage-pipeline/internal/retry"
)

// Client is the platform API egress client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Options configures Client.
type Options struct {
	BaseURL string
	Token   string
	// RequestsPerSecond bounds the outbound call rate. The platform API
	// has one fixed budget per token, unlike a model provider's varying
	// per-call token cost, so a fixed (non-adaptive) limiter is
	// sufficient here; see SPEC_FULL.md's DOMAIN STACK for why the AIMD
	// rate limiter used elsewhere in the reference tree is not wired in.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// New builds a platform API client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// NotFoundError marks a 404 response from the platform API (spec §4.4, §7:
// "NotFoundError ... permanent, drop the record with a log line").
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("platform api: not found: %s", e.Path) }

// GetUser fetches GET /api/v4/users/{id}.
func (c *Client) GetUser(ctx context.Context, id int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/api/v4/users/%d", id))
}

// GetProject fetches GET /api/v4/projects/{id}.
func (c *Client) GetProject(ctx context.Context, id int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/api/v4/projects/%d", id))
}

// GetIssue fetches GET /api/v4/projects/{id}/issues/{iid}.
func (c *Client) GetIssue(ctx context.Context, projectID, issueIID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/api/v4/projects/%d/issues/%d", projectID, issueIID))
}

// GetIssueNote fetches GET /api/v4/projects/{id}/issues/{iid}/notes/{nid}.
func (c *Client) GetIssueNote(ctx context.Context, projectID, issueIID, noteID int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/api/v4/projects/%d/issues/%d/notes/%d", projectID, issueIID, noteID))
}

// GetGroup fetches GET /api/v4/groups/{id}.
func (c *Client) GetGroup(ctx context.Context, id int) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/api/v4/groups/%d", id))
}

// GroupMember is one entry of a group's member list.
type GroupMember struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	AccessLevel int    `json:"access_level"`
}

// GetGroupMembers fetches GET /api/v4/groups/{id}/members/all, used by
// Verification's group-owner heuristic (spec §4.3).
func (c *Client) GetGroupMembers(ctx context.Context, id int) ([]GroupMember, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/api/v4/groups/%d/members/all", id))
	if err != nil {
		return nil, err
	}
	var members []GroupMember
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("decode group members: %w", err)
	}
	return members, nil
}

// Snippet is one entry of the public snippet listing.
type Snippet struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	AuthorID  int    `json:"author_id"`
	Author    SnippetAuthor `json:"author"`
	WebURL    string `json:"web_url"`
	CreatedAt string `json:"created_at"`
}

// SnippetAuthor is the embedded author object on a snippet, when the
// platform inlines it.
type SnippetAuthor struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ListPublicSnippets fetches GET /api/v4/snippets.
func (c *Client) ListPublicSnippets(ctx context.Context) ([]Snippet, error) {
	raw, err := c.get(ctx, "/api/v4/snippets")
	if err != nil {
		return nil, err
	}
	var snippets []Snippet
	if err := json.Unmarshal(raw, &snippets); err != nil {
		return nil, fmt.Errorf("decode snippets: %w", err)
	}
	return snippets, nil
}

// get performs a bounded-retry GET against the platform API, translating a
// 404 into a permanent, non-retryable error.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	var body json.RawMessage
	cfg := retry.PlatformAPIConfig()
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("PRIVATE-TOKEN", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return retry.Permanent(&NotFoundError{Path: path})
		}
		if resp.StatusCode != http.StatusOK {
			return &retry.HTTPStatusError{StatusCode: resp.StatusCode, Message: path}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
