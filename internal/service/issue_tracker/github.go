package issue_tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"echo.app/relay/internal/model"
	"github.com/go-resty/resty/v2"
)

const (
	defaultGitHubAPIURL = "https://api.github.com"
	githubPageSize      = 100
)

type gitHubClient struct {
	http  *resty.Client
	owner string
	repo  string
}

// NewGitHubClient builds a REST v3 client for "owner/repo". BaseURL, when set,
// is the API root (GitHub Enterprise: https://host/api/v3).
func NewGitHubClient(creds Credentials) (Client, error) {
	owner, repo, ok := strings.Cut(creds.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github repository must be owner/repo, got %q", creds.Repository)
	}

	baseURL := defaultGitHubAPIURL
	if creds.BaseURL != nil && *creds.BaseURL != "" {
		baseURL = strings.TrimSuffix(*creds.BaseURL, "/")
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(creds.AccessToken).
		SetTimeout(timeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetHeader("User-Agent", "echo-relay")

	return &gitHubClient{http: client, owner: owner, repo: repo}, nil
}

type githubLabel struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

type githubIssue struct {
	ID      int64         `json:"id"`
	Number  int64         `json:"number"`
	HTMLURL string        `json:"html_url"`
	Title   string        `json:"title"`
	Body    string        `json:"body"`
	State   string        `json:"state"`
	Labels  []githubLabel `json:"labels"`
}

type githubComment struct {
	ID        int64     `json:"id"`
	HTMLURL   string    `json:"html_url"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

type githubRepository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

func (c *gitHubClient) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", c.owner, c.repo, suffix)
}

// do sends the request and turns a non-2xx answer into *APIError.
func (c *gitHubClient) do(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("github %s %s: %w", method, path, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &APIError{
			Provider:   model.ProviderGitHub,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return nil
}

func (c *gitHubClient) CreateIssue(ctx context.Context, params CreateIssueParams) (*Issue, error) {
	body := map[string]any{
		"title": params.Title,
		"body":  params.Body,
	}
	if len(params.Labels) > 0 {
		body["labels"] = params.Labels
	}
	if len(params.Assignees) > 0 {
		body["assignees"] = params.Assignees
	}

	var out githubIssue
	if err := c.do(ctx, http.MethodPost, c.repoPath("/issues"), nil, body, &out); err != nil {
		return nil, err
	}
	return out.toIssue(), nil
}

func (c *gitHubClient) UpdateIssue(ctx context.Context, number int64, params UpdateIssueParams) (*Issue, error) {
	body := map[string]any{}
	if params.Title != nil {
		body["title"] = *params.Title
	}
	if params.Body != nil {
		body["body"] = *params.Body
	}
	if params.Labels != nil {
		body["labels"] = *params.Labels
	}
	if params.State != nil {
		body["state"] = string(*params.State)
	}

	var out githubIssue
	if err := c.do(ctx, http.MethodPatch, c.repoPath("/issues/"+strconv.FormatInt(number, 10)), nil, body, &out); err != nil {
		return nil, err
	}
	return out.toIssue(), nil
}

func (c *gitHubClient) GetIssue(ctx context.Context, number int64) (*Issue, error) {
	var out githubIssue
	if err := c.do(ctx, http.MethodGet, c.repoPath("/issues/"+strconv.FormatInt(number, 10)), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.toIssue(), nil
}

func (c *gitHubClient) CloseIssue(ctx context.Context, number int64) (*Issue, error) {
	state := model.ExternalStatusClosed
	return c.UpdateIssue(ctx, number, UpdateIssueParams{State: &state})
}

func (c *gitHubClient) ReopenIssue(ctx context.Context, number int64) (*Issue, error) {
	state := model.ExternalStatusOpen
	return c.UpdateIssue(ctx, number, UpdateIssueParams{State: &state})
}

func (c *gitHubClient) CreateComment(ctx context.Context, number int64, body string) (*Comment, error) {
	var out githubComment
	path := c.repoPath("/issues/" + strconv.FormatInt(number, 10) + "/comments")
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"body": body}, &out); err != nil {
		return nil, err
	}
	comment := out.toComment()
	return &comment, nil
}

func (c *gitHubClient) ListComments(ctx context.Context, number int64) ([]Comment, error) {
	var comments []Comment
	for page := 1; ; page++ {
		var out []githubComment
		path := c.repoPath("/issues/" + strconv.FormatInt(number, 10) + "/comments")
		if err := c.do(ctx, http.MethodGet, path, pageQuery(page), nil, &out); err != nil {
			return nil, err
		}
		for _, gc := range out {
			comments = append(comments, gc.toComment())
		}
		if len(out) < githubPageSize {
			return comments, nil
		}
	}
}

func (c *gitHubClient) ListLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	for page := 1; ; page++ {
		var out []githubLabel
		if err := c.do(ctx, http.MethodGet, c.repoPath("/labels"), pageQuery(page), nil, &out); err != nil {
			return nil, err
		}
		for _, l := range out {
			labels = append(labels, Label(l))
		}
		if len(out) < githubPageSize {
			return labels, nil
		}
	}
}

func (c *gitHubClient) CreateLabel(ctx context.Context, label Label) (*Label, error) {
	var out githubLabel
	in := githubLabel{
		Name:        label.Name,
		Color:       strings.TrimPrefix(label.Color, "#"),
		Description: label.Description,
	}
	if err := c.do(ctx, http.MethodPost, c.repoPath("/labels"), nil, in, &out); err != nil {
		return nil, err
	}
	created := Label(out)
	return &created, nil
}

func (c *gitHubClient) GetRepository(ctx context.Context) (*Repository, error) {
	var out githubRepository
	if err := c.do(ctx, http.MethodGet, c.repoPath(""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &Repository{
		ID:            strconv.FormatInt(out.ID, 10),
		FullName:      out.FullName,
		URL:           out.HTMLURL,
		DefaultBranch: out.DefaultBranch,
		Private:       out.Private,
	}, nil
}

type githubHook struct {
	ID     int64 `json:"id"`
	Config struct {
		URL string `json:"url"`
	} `json:"config"`
}

func (c *gitHubClient) CreateHook(ctx context.Context, params CreateHookParams) (*Hook, error) {
	body := map[string]any{
		"name":   "web",
		"active": true,
		"events": []string{"issues", "issue_comment"},
		"config": map[string]string{
			"url":          params.URL,
			"content_type": "json",
			"secret":       params.Secret,
			"insecure_ssl": "0",
		},
	}
	var out githubHook
	if err := c.do(ctx, http.MethodPost, c.repoPath("/hooks"), nil, body, &out); err != nil {
		return nil, err
	}
	return &Hook{ID: strconv.FormatInt(out.ID, 10), URL: out.Config.URL}, nil
}

func pageQuery(page int) map[string]string {
	return map[string]string{
		"per_page": strconv.Itoa(githubPageSize),
		"page":     strconv.Itoa(page),
	}
}

func (i githubIssue) toIssue() *Issue {
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.Name)
	}
	state := model.ExternalStatusOpen
	if i.State == "closed" {
		state = model.ExternalStatusClosed
	}
	return &Issue{
		ID:     strconv.FormatInt(i.ID, 10),
		Number: i.Number,
		URL:    i.HTMLURL,
		Title:  i.Title,
		Body:   i.Body,
		State:  state,
		Labels: labels,
	}
}

func (c githubComment) toComment() Comment {
	return Comment{
		ID:        strconv.FormatInt(c.ID, 10),
		URL:       c.HTMLURL,
		Author:    c.User.Login,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}
