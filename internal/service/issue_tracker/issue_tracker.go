package issue_tracker

import (
	"context"
	"fmt"
	"time"

	"echo.app/relay/internal/model"
)

// Issue is the provider-neutral view of an external issue.
type Issue struct {
	ID     string // provider-global id
	Number int64  // per-repository number (GitHub number, GitLab IID)
	URL    string
	Title  string
	Body   string
	State  model.ExternalStatus
	Labels []string
}

type CreateIssueParams struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string // GitHub logins; ignored by providers that assign by numeric id
}

// UpdateIssueParams is a partial update: nil fields are left untouched.
type UpdateIssueParams struct {
	Title  *string
	Body   *string
	Labels *[]string
	State  *model.ExternalStatus
}

type Comment struct {
	ID        string
	URL       string
	Author    string
	Body      string
	CreatedAt time.Time
}

type Label struct {
	Name        string
	Color       string
	Description string
}

// CreateHookParams registers our inbound endpoint on the repository.
// Secret is the HMAC key (GitHub) or the token echoed back (GitLab).
type CreateHookParams struct {
	URL    string
	Secret string
}

type Hook struct {
	ID  string
	URL string
}

type Repository struct {
	ID            string
	FullName      string
	URL           string
	DefaultBranch string
	Private       bool
}

// Client is a synchronous per-call wrapper around one tracker repository.
// Every failure is an *APIError (the tracker answered non-2xx) or a wrapped transport error.
type Client interface {
	CreateIssue(ctx context.Context, params CreateIssueParams) (*Issue, error)
	UpdateIssue(ctx context.Context, number int64, params UpdateIssueParams) (*Issue, error)
	GetIssue(ctx context.Context, number int64) (*Issue, error)
	CloseIssue(ctx context.Context, number int64) (*Issue, error)
	ReopenIssue(ctx context.Context, number int64) (*Issue, error)
	CreateComment(ctx context.Context, number int64, body string) (*Comment, error)
	ListComments(ctx context.Context, number int64) ([]Comment, error)
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, label Label) (*Label, error)
	GetRepository(ctx context.Context) (*Repository, error)
	// CreateHook subscribes URL to issue and comment events of the repository.
	CreateHook(ctx context.Context, params CreateHookParams) (*Hook, error)
}

// APIError carries the upstream status code and raw body of a rejected call.
type APIError struct {
	Provider   model.Provider
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api %s %s: status %d: %s", e.Provider, e.Method, e.Path, e.StatusCode, truncate(e.Body, 500))
}

// ValidateToken reports whether the client's credentials can read the repository.
// Only meant for credential-check flows; every failure degrades to false.
func ValidateToken(ctx context.Context, client Client) bool {
	if client == nil {
		return false
	}
	_, err := client.GetRepository(ctx)
	return err == nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
