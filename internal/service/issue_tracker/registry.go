package issue_tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"echo.app/relay/internal/model"
)

var ErrUnsupportedProvider = errors.New("unsupported issue tracker provider")

// Capability flags what a provider can do. The orchestrator and the comment
// mirror check capabilities instead of switching on provider names.
type Capability uint8

const (
	CapabilityIssueSync Capability = 1 << iota
	CapabilityCommentSync
	CapabilityLabels
	CapabilityInboundWebhooks
)

func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// Credentials is what a provider needs to build a client for one integration.
type Credentials struct {
	BaseURL     *string
	AccessToken string
	Repository  string
	Timeout     time.Duration
	Logger      *slog.Logger
}

type Factory struct {
	Capabilities Capability
	New          func(creds Credentials) (Client, error)
}

type Registry struct {
	mu        sync.RWMutex
	factories map[model.Provider]Factory
	timeout   time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		factories: make(map[model.Provider]Factory),
		timeout:   timeout,
	}
}

// NewDefaultRegistry returns a registry with the built-in GitHub and GitLab providers.
func NewDefaultRegistry(timeout time.Duration) *Registry {
	r := NewRegistry(timeout)
	r.Register(model.ProviderGitHub, Factory{
		Capabilities: CapabilityIssueSync | CapabilityCommentSync | CapabilityLabels | CapabilityInboundWebhooks,
		New:          NewGitHubClient,
	})
	r.Register(model.ProviderGitLab, Factory{
		Capabilities: CapabilityIssueSync | CapabilityCommentSync | CapabilityLabels | CapabilityInboundWebhooks,
		New:          NewGitLabClient,
	})
	return r
}

func (r *Registry) Register(provider model.Provider, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

func (r *Registry) Supports(provider model.Provider, capability Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[provider]
	return ok && f.Capabilities.Has(capability)
}

// ClientFor builds a client bound to the integration's repository.
func (r *Registry) ClientFor(integration *model.Integration) (Client, error) {
	r.mu.RLock()
	f, ok := r.factories[integration.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, integration.Provider)
	}

	client, err := f.New(Credentials{
		BaseURL:     integration.ProviderBaseURL,
		AccessToken: integration.AccessToken,
		Repository:  integration.Repository,
		Timeout:     r.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", integration.Provider, err)
	}
	return client, nil
}
