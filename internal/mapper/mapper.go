package mapper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"echo.app/relay/internal/model"
)

type CanonicalEventType string

const (
	EventIssueClosed   CanonicalEventType = "issue_closed"
	EventIssueReopened CanonicalEventType = "issue_reopened"
	EventIssueUpdated  CanonicalEventType = "issue_updated"
	EventCommentAdded  CanonicalEventType = "comment_added"
)

// ErrIgnored is returned for deliveries that carry nothing to sync, such as
// pull request activity or label edits on other objects.
var ErrIgnored = errors.New("event ignored")

// Comment is a tracker comment carried by an inbound event.
type Comment struct {
	ID     string
	Author string
	Body   string
	URL    string
}

// Event is a tracker webhook reduced to what sync needs.
type Event struct {
	Type        CanonicalEventType
	IssueNumber int64
	// State is the issue state after the event, empty when the payload has none.
	State   model.ExternalStatus
	Actor   string
	Comment *Comment
}

type EventMapper interface {
	Map(ctx context.Context, body []byte, headers map[string]string) (*Event, error)
}

// Registry holds one mapper per provider.
type Registry struct {
	mu      sync.RWMutex
	mappers map[model.Provider]EventMapper
}

func NewRegistry() *Registry {
	return &Registry{mappers: make(map[model.Provider]EventMapper)}
}

// NewDefaultRegistry has the GitHub and GitLab mappers registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.ProviderGitHub, NewGitHubEventMapper())
	r.Register(model.ProviderGitLab, NewGitLabEventMapper())
	return r
}

func (r *Registry) Register(provider model.Provider, m EventMapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappers[provider] = m
}

func (r *Registry) Get(provider model.Provider) (EventMapper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappers[provider]
	if !ok {
		return nil, fmt.Errorf("no event mapper for provider %q", provider)
	}
	return m, nil
}
