// Package tracker is a small Jira Cloud REST v3 client covering the calls
// storyqa makes: fetch an issue, create a test issue, link issues, update a
// field, list projects and search with JQL.
package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storyqa/pkg/logx"
)

const (
	apiPrefix = "rest/api/3/"

	// DefaultSearchLimit caps SearchIssues when no limit is given.
	DefaultSearchLimit = 20
)

// Config is everything needed to talk to one Jira site.
type Config struct {
	BaseURL                 string
	Email                   string
	APIToken                string
	AcceptanceCriteriaField string
	Timeout                 time.Duration
}

// Client implements the Jira calls over net/http with basic auth.
type Client struct {
	baseURL string
	auth    string
	acField string
	logger  *logx.Logger
	client  *http.Client
}

// NewClient creates a Jira client. BaseURL should already be normalized
// with a trailing slash.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Email+":"+cfg.APIToken)),
		acField: cfg.AcceptanceCriteriaField,
		logger:  logx.NewLogger("jira-client"),
		client:  &http.Client{Timeout: timeout},
	}
}

// AcceptanceCriteriaField returns the custom field id read by GetIssue.
func (c *Client) AcceptanceCriteriaField() string {
	return c.acField
}

// doRequest performs an authenticated JSON request and decodes a 2xx body
// into out when out is non-nil. Non-2xx replies become *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("%s %s", method, target)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, resp.Status, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetIssue fetches an issue with its summary, description, type, project
// and acceptance criteria field.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	fields := []string{"summary", "description", "issuetype", "project"}
	if c.acField != "" {
		fields = append(fields, c.acField)
	}
	query := url.Values{"fields": {strings.Join(fields, ",")}}

	var raw struct {
		ID     string          `json:"id"`
		Key    string          `json:"key"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "issue/"+url.PathEscape(key), query, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", key, err)
	}

	issue := &Issue{ID: raw.ID, Key: raw.Key}
	if len(raw.Fields) > 0 {
		if err := json.Unmarshal(raw.Fields, &issue.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", key, err)
		}
		if c.acField != "" {
			var all map[string]json.RawMessage
			if err := json.Unmarshal(raw.Fields, &all); err == nil {
				issue.Fields.AcceptanceCriteria = all[c.acField]
			}
		}
	}
	return issue, nil
}

// CreateIssue creates an issue and returns its id, key and self link.
func (c *Client) CreateIssue(ctx context.Context, in *NewIssue) (*CreatedIssue, error) {
	project := in.Project
	if project.Key != "" {
		project.ID = ""
	}
	if project.Key == "" && project.ID == "" {
		return nil, fmt.Errorf("either project key or project id must be provided")
	}

	req := createIssueRequest{Fields: createIssueFields{
		Project:     project,
		Summary:     in.Summary,
		Description: in.Body,
		IssueType:   IssueType{Name: in.IssueType},
	}}
	var created CreatedIssue
	if err := c.doRequest(ctx, http.MethodPost, "issue", nil, req, &created); err != nil {
		return nil, err
	}
	c.logger.Info("created %s issue %s", in.IssueType, created.Key)
	return &created, nil
}

// LinkIssues links inwardKey to outwardKey with the named link type.
func (c *Client) LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	req := linkRequest{
		Type:         IssueType{Name: linkType},
		InwardIssue:  issueKeyRef{Key: inwardKey},
		OutwardIssue: issueKeyRef{Key: outwardKey},
	}
	if err := c.doRequest(ctx, http.MethodPost, "issueLink", nil, req, nil); err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", inwardKey, outwardKey, err)
	}
	return nil
}

// UpdateField sets a single field on an issue.
func (c *Client) UpdateField(ctx context.Context, key, field string, value any) error {
	req := updateRequest{Fields: map[string]any{field: value}}
	if err := c.doRequest(ctx, http.MethodPut, "issue/"+url.PathEscape(key), nil, req, nil); err != nil {
		return fmt.Errorf("failed to update %s on %s: %w", field, key, err)
	}
	return nil
}

// ListProjects returns every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.doRequest(ctx, http.MethodGet, "project", nil, nil, &projects); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// SearchIssues runs a JQL query and returns up to limit issues.
func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) ([]Issue, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query := url.Values{
		"jql":        {jql},
		"fields":     {"summary,issuetype,project,status"},
		"maxResults": {strconv.Itoa(limit)},
	}
	var resp searchResponse
	if err := c.doRequest(ctx, http.MethodGet, "search/jql", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return resp.Issues, nil
}
