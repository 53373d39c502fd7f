// Package tracker provides a client for the upstream issue tracking API.
// All list calls walk the cursor pagination until the API reports no more
// pages. There is no retry layer: a transport or API failure aborts the
// call and propagates to the caller.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config represents the information needed to construct a client.
type Config struct {
	APIURL     string
	APIKey     string
	HTTPClient *http.Client
}

// Client knows how to query and mutate the upstream tracker workspace.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
}

// New constructs a client for upstream API access. The transport is wrapped
// for trace propagation.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		http: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Timeout:   httpClient.Timeout,
		},
	}
}

// Teams returns every team in the workspace.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	return listAll[Team](ctx, c, "teams", nil)
}

// Initiatives returns every initiative in the workspace. Initiative access
// may require broader credentials than team data.
func (c *Client) Initiatives(ctx context.Context) ([]Initiative, error) {
	return listAll[Initiative](ctx, c, "initiatives", nil)
}

// Projects returns the projects belonging to the specified team.
func (c *Client) Projects(ctx context.Context, teamID string) ([]Project, error) {
	return listAll[Project](ctx, c, "projects", url.Values{"team": {teamID}})
}

// ProjectsSince returns the team's projects updated at or after the watermark.
func (c *Client) ProjectsSince(ctx context.Context, teamID string, since time.Time) ([]Project, error) {
	return listAll[Project](ctx, c, "projects", url.Values{
		"team":         {teamID},
		"updatedSince": {since.UTC().Format(time.RFC3339)},
	})
}

// Issues returns the issues belonging to the specified team.
func (c *Client) Issues(ctx context.Context, teamID string) ([]Issue, error) {
	return listAll[Issue](ctx, c, "issues", url.Values{"team": {teamID}})
}

// IssuesSince returns the team's issues updated at or after the watermark.
func (c *Client) IssuesSince(ctx context.Context, teamID string, since time.Time) ([]Issue, error) {
	return listAll[Issue](ctx, c, "issues", url.Values{
		"team":         {teamID},
		"updatedSince": {since.UTC().Format(time.RFC3339)},
	})
}

// Comments returns the comments on the specified issue.
func (c *Client) Comments(ctx context.Context, issueID string) ([]Comment, error) {
	return listAll[Comment](ctx, c, "comments", url.Values{"issue": {issueID}})
}

// CreateComment posts a new comment on the specified issue.
func (c *Client) CreateComment(ctx context.Context, issueID string, body string) (Comment, error) {
	in := map[string]string{"issueId": issueID, "body": body}

	var out Comment
	if err := c.do(ctx, http.MethodPost, "comments", nil, in, &out); err != nil {
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}

	return out, nil
}

// CreateIssue creates a new issue on the specified team.
func (c *Client) CreateIssue(ctx context.Context, teamID string, title string, description string) (Issue, error) {
	in := map[string]string{"teamId": teamID, "title": title, "description": description}

	var out Issue
	if err := c.do(ctx, http.MethodPost, "issues", nil, in, &out); err != nil {
		return Issue{}, fmt.Errorf("create issue: %w", err)
	}

	return out, nil
}

// UpdateIssueLabels replaces the label set on the specified issue.
func (c *Client) UpdateIssueLabels(ctx context.Context, issueID string, labelIDs []string) (Issue, error) {
	in := map[string]any{"labelIds": labelIDs}

	var out Issue
	if err := c.do(ctx, http.MethodPatch, "issues/"+issueID, nil, in, &out); err != nil {
		return Issue{}, fmt.Errorf("update issue labels: %w", err)
	}

	return out, nil
}

// =============================================================================

type pageEnvelope struct {
	Nodes    []json.RawMessage `json:"nodes"`
	PageInfo PageInfo          `json:"pageInfo"`
}

// PageInfo reports cursor state for a page of results.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// rawCarrier is implemented by entity types that retain their original
// upstream payload verbatim.
type rawCarrier interface {
	setRaw(raw json.RawMessage)
}

func listAll[T any, PT interface {
	rawCarrier
	*T
}](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	cursor := ""

	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		if cursor != "" {
			q.Set("after", cursor)
		}

		var env pageEnvelope
		if err := c.do(ctx, http.MethodGet, path, q, nil, &env); err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}

		for _, node := range env.Nodes {
			var ent T
			if err := json.Unmarshal(node, &ent); err != nil {
				return nil, fmt.Errorf("decode %s node: %w", path, err)
			}
			PT(&ent).setRaw(node)
			all = append(all, ent)
		}

		if !env.PageInfo.HasNextPage {
			break
		}
		cursor = env.PageInfo.EndCursor
	}

	return all, nil
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, in any, out any) error {
	u := fmt.Sprintf("%s/%s", c.apiURL, path)
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", u, query.Encode())
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
