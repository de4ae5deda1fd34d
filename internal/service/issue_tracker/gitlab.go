package issue_tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"echo.app/relay/internal/model"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type gitLabClient struct {
	client  *gitlab.Client
	project string // numeric id or "group/project" path
	logger  *slog.Logger
}

// NewGitLabClient builds a client for one project. BaseURL is the instance
// root (https://gitlab.example.com); /api/v4 is appended.
func NewGitLabClient(creds Credentials) (Client, error) {
	if strings.TrimSpace(creds.Repository) == "" {
		return nil, errors.New("gitlab project is required")
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if creds.BaseURL != nil && *creds.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(*creds.BaseURL, "/")+"/api/v4"))
	}

	client, err := gitlab.NewClient(creds.AccessToken, opts...)
	if err != nil {
		return nil, err
	}
	logger := creds.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &gitLabClient{client: client, project: creds.Repository, logger: logger}, nil
}

// wrap converts a client-go error response into *APIError.
func (c *gitLabClient) wrap(method, path string, err error) error {
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return &APIError{
			Provider:   model.ProviderGitLab,
			Method:     method,
			Path:       path,
			StatusCode: errResp.Response.StatusCode,
			Body:       string(errResp.Body),
		}
	}
	// client-go reports 404 as a bare sentinel without the response.
	if errors.Is(err, gitlab.ErrNotFound) {
		return &APIError{
			Provider:   model.ProviderGitLab,
			Method:     method,
			Path:       path,
			StatusCode: http.StatusNotFound,
			Body:       err.Error(),
		}
	}
	return fmt.Errorf("gitlab %s %s: %w", method, path, err)
}

func (c *gitLabClient) issuePath(number int64) string {
	return fmt.Sprintf("/projects/%s/issues/%d", c.project, number)
}

func (c *gitLabClient) CreateIssue(ctx context.Context, params CreateIssueParams) (*Issue, error) {
	opts := &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(params.Title),
		Description: gitlab.Ptr(params.Body),
	}
	if len(params.Labels) > 0 {
		labels := gitlab.LabelOptions(params.Labels)
		opts.Labels = &labels
	}

	issue, _, err := c.client.Issues.CreateIssue(c.project, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodPost, fmt.Sprintf("/projects/%s/issues", c.project), err)
	}
	return toGitLabIssue(issue), nil
}

func (c *gitLabClient) UpdateIssue(ctx context.Context, number int64, params UpdateIssueParams) (*Issue, error) {
	opts := &gitlab.UpdateIssueOptions{
		Title:       params.Title,
		Description: params.Body,
	}
	if params.Labels != nil {
		labels := gitlab.LabelOptions(*params.Labels)
		opts.Labels = &labels
	}
	if params.State != nil {
		event := "reopen"
		if *params.State == model.ExternalStatusClosed {
			event = "close"
		}
		opts.StateEvent = gitlab.Ptr(event)
	}

	issue, _, err := c.client.Issues.UpdateIssue(c.project, number, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodPut, c.issuePath(number), err)
	}
	return toGitLabIssue(issue), nil
}

func (c *gitLabClient) GetIssue(ctx context.Context, number int64) (*Issue, error) {
	issue, _, err := c.client.Issues.GetIssue(c.project, number, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodGet, c.issuePath(number), err)
	}
	return toGitLabIssue(issue), nil
}

func (c *gitLabClient) CloseIssue(ctx context.Context, number int64) (*Issue, error) {
	state := model.ExternalStatusClosed
	return c.UpdateIssue(ctx, number, UpdateIssueParams{State: &state})
}

func (c *gitLabClient) ReopenIssue(ctx context.Context, number int64) (*Issue, error) {
	state := model.ExternalStatusOpen
	return c.UpdateIssue(ctx, number, UpdateIssueParams{State: &state})
}

func (c *gitLabClient) CreateComment(ctx context.Context, number int64, body string) (*Comment, error) {
	note, _, err := c.client.Notes.CreateIssueNote(c.project, number, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodPost, c.issuePath(number)+"/notes", err)
	}

	comment := toGitLabComment(note)
	// Notes carry no web URL; anchor on the issue page. The note exists either
	// way, so a failed lookup only costs the link.
	issue, _, err := c.client.Issues.GetIssue(c.project, number, gitlab.WithContext(ctx))
	if err != nil {
		c.logger.WarnContext(ctx, "gitlab note created without a web url",
			"project", c.project,
			"issue_number", number,
			"note_id", comment.ID,
			"error", c.wrap(http.MethodGet, c.issuePath(number), err))
		return &comment, nil
	}
	comment.URL = fmt.Sprintf("%s#note_%s", issue.WebURL, comment.ID)
	return &comment, nil
}

func (c *gitLabClient) ListComments(ctx context.Context, number int64) ([]Comment, error) {
	opts := &gitlab.ListIssueNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1},
	}

	var comments []Comment
	for {
		notes, resp, err := c.client.Notes.ListIssueNotes(c.project, number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, c.wrap(http.MethodGet, c.issuePath(number)+"/notes", err)
		}
		for _, n := range notes {
			if n == nil || n.System {
				continue
			}
			comments = append(comments, toGitLabComment(n))
		}
		if resp == nil || resp.NextPage == 0 {
			return comments, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *gitLabClient) ListLabels(ctx context.Context) ([]Label, error) {
	opts := &gitlab.ListLabelsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1},
	}

	var labels []Label
	for {
		page, resp, err := c.client.Labels.ListLabels(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, c.wrap(http.MethodGet, fmt.Sprintf("/projects/%s/labels", c.project), err)
		}
		for _, l := range page {
			if l == nil {
				continue
			}
			labels = append(labels, Label{Name: l.Name, Color: l.Color, Description: l.Description})
		}
		if resp == nil || resp.NextPage == 0 {
			return labels, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *gitLabClient) CreateLabel(ctx context.Context, label Label) (*Label, error) {
	color := label.Color
	if color != "" && !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	created, _, err := c.client.Labels.CreateLabel(c.project, &gitlab.CreateLabelOptions{
		Name:        gitlab.Ptr(label.Name),
		Color:       gitlab.Ptr(color),
		Description: gitlab.Ptr(label.Description),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodPost, fmt.Sprintf("/projects/%s/labels", c.project), err)
	}
	return &Label{Name: created.Name, Color: created.Color, Description: created.Description}, nil
}

func (c *gitLabClient) GetRepository(ctx context.Context) (*Repository, error) {
	project, _, err := c.client.Projects.GetProject(c.project, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodGet, fmt.Sprintf("/projects/%s", c.project), err)
	}
	return &Repository{
		ID:            strconv.FormatInt(int64(project.ID), 10),
		FullName:      project.PathWithNamespace,
		URL:           project.WebURL,
		DefaultBranch: project.DefaultBranch,
		Private:       project.Visibility == gitlab.PrivateVisibility,
	}, nil
}

func (c *gitLabClient) CreateHook(ctx context.Context, params CreateHookParams) (*Hook, error) {
	hook, _, err := c.client.Projects.AddProjectHook(c.project, &gitlab.AddProjectHookOptions{
		URL:                   gitlab.Ptr(params.URL),
		Name:                  gitlab.Ptr("Echo"),
		Description:           gitlab.Ptr("Keeps Echo feedback in step with issues and notes"),
		IssuesEvents:          gitlab.Ptr(true),
		NoteEvents:            gitlab.Ptr(true),
		Token:                 gitlab.Ptr(params.Secret),
		EnableSSLVerification: gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, c.wrap(http.MethodPost, fmt.Sprintf("/projects/%s/hooks", c.project), err)
	}
	return &Hook{ID: strconv.FormatInt(int64(hook.ID), 10), URL: hook.URL}, nil
}

func toGitLabIssue(issue *gitlab.Issue) *Issue {
	state := model.ExternalStatusOpen
	if issue.State == "closed" {
		state = model.ExternalStatusClosed
	}
	return &Issue{
		ID:     strconv.FormatInt(int64(issue.ID), 10),
		Number: int64(issue.IID),
		URL:    issue.WebURL,
		Title:  issue.Title,
		Body:   issue.Description,
		State:  state,
		Labels: append([]string(nil), issue.Labels...),
	}
}

func toGitLabComment(note *gitlab.Note) Comment {
	comment := Comment{
		ID:     strconv.FormatInt(int64(note.ID), 10),
		Author: note.Author.Username,
		Body:   note.Body,
	}
	if note.CreatedAt != nil {
		comment.CreatedAt = *note.CreatedAt
	}
	return comment
}
