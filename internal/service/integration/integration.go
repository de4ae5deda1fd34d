package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issue_tracker"
	"echo.app/relay/internal/store"
)

var (
	ErrNotConnected       = errors.New("integration not connected")
	ErrInvalidCredentials = errors.New("issue tracker rejected the credentials")
	ErrInvalidConfig      = errors.New("invalid integration config")
)

// DefaultTriggerStatuses are the statuses that create the external issue
// when a new integration does not name its own.
var DefaultTriggerStatuses = []model.FeedbackStatus{
	model.FeedbackStatusInProgress,
	model.FeedbackStatusPlanned,
}

// TrackerProvider resolves tracker clients for integrations.
type TrackerProvider interface {
	Supports(provider model.Provider, capability issue_tracker.Capability) bool
	ClientFor(integration *model.Integration) (issue_tracker.Client, error)
}

type Service interface {
	Connect(ctx context.Context, params ConnectParams) (*ConnectResult, error)
	Get(ctx context.Context, orgID int64) (*model.Integration, error)
	Disconnect(ctx context.Context, orgID int64) error
	Validate(ctx context.Context, params ValidateParams) (*ValidateResult, error)
}

// ConnectParams creates or updates the organization's integration. Nil
// settings keep their current value (or the default for a new integration).
// An empty AccessToken keeps the stored token when the provider is unchanged.
type ConnectParams struct {
	OrganizationID  int64
	Provider        model.Provider
	ProviderBaseURL *string
	AccessToken     string
	Repository      string

	Enabled           *bool
	AutoSync          *bool
	SyncStatusChanges *bool
	SyncComments      *bool
	TriggerStatuses   []model.FeedbackStatus
	LabelMapping      *model.LabelMapping
	StatusMapping     model.StatusMapping
}

type ConnectResult struct {
	Integration *model.Integration
	Created     bool
	Repository  *issue_tracker.Repository
	// HookID is set when an inbound webhook was registered on the repository.
	HookID string
	// HookError reports a failed hook registration. The integration is saved
	// regardless; the hook can be added by hand with the returned secret.
	HookError string
}

type ValidateParams struct {
	Provider        model.Provider
	ProviderBaseURL *string
	AccessToken     string
	Repository      string
}

type ValidateResult struct {
	Valid      bool
	Repository *issue_tracker.Repository
}

type service struct {
	integrations  store.IntegrationStore
	trackers      TrackerProvider
	publicBaseURL string
	logger        *slog.Logger
}

// NewService builds the integration service. publicBaseURL is where trackers
// reach the inbound webhook routes; hooks are not registered when it is empty.
func NewService(integrations store.IntegrationStore, trackers TrackerProvider, publicBaseURL string, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		integrations:  integrations,
		trackers:      trackers,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *service) Connect(ctx context.Context, params ConnectParams) (*ConnectResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &params.OrganizationID,
		Provider:       logger.Ptr(string(params.Provider)),
		Component:      "echo.integration",
	})

	if !s.trackers.Supports(params.Provider, issue_tracker.CapabilityIssueSync) {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidConfig, params.Provider)
	}
	repository := strings.TrimSpace(params.Repository)
	if repository == "" {
		return nil, fmt.Errorf("%w: repository is required", ErrInvalidConfig)
	}

	existing, err := s.integrations.GetByOrganization(ctx, params.OrganizationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("fetching integration: %w", err)
	}

	integration := newIntegration(params.OrganizationID)
	created := existing == nil
	if existing != nil {
		copied := *existing
		integration = &copied
	}

	token := strings.TrimSpace(params.AccessToken)
	if token == "" && existing != nil && existing.Provider == params.Provider {
		token = existing.AccessToken
	}
	if token == "" {
		return nil, fmt.Errorf("%w: access_token is required", ErrInvalidConfig)
	}

	target := existing == nil ||
		existing.Provider != params.Provider ||
		existing.Repository != repository ||
		stringValue(existing.ProviderBaseURL) != stringValue(params.ProviderBaseURL)

	integration.Provider = params.Provider
	integration.ProviderBaseURL = params.ProviderBaseURL
	integration.AccessToken = token
	integration.Repository = repository
	if err := applySettings(integration, params); err != nil {
		return nil, err
	}

	repo, err := s.checkCredentials(ctx, integration)
	if err != nil {
		return nil, err
	}

	if integration.WebhookSecret == "" || (target && existing != nil) {
		secret, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generating webhook secret: %w", err)
		}
		integration.WebhookSecret = secret
	}

	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return nil, fmt.Errorf("saving integration: %w", err)
	}

	s.logger.InfoContext(ctx, "integration connected",
		"integration_id", integration.ID,
		"repository", integration.Repository,
		"created", created)

	result := &ConnectResult{Integration: integration, Created: created, Repository: repo}
	if target {
		result.HookID, result.HookError = s.installHook(ctx, integration)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, orgID int64) (*model.Integration, error) {
	integration, err := s.integrations.GetByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	return integration, nil
}

// Disconnect deletes the integration; disconnecting twice is not an error.
// Linked feedback keeps its external fields, which sync then ignores.
func (s *service) Disconnect(ctx context.Context, orgID int64) error {
	if err := s.integrations.DeleteByOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("deleting integration: %w", err)
	}
	s.logger.InfoContext(ctx, "integration disconnected", "organization_id", orgID)
	return nil
}

// Validate checks credentials without saving anything. Tracker rejections
// report Valid=false; only malformed input is an error.
func (s *service) Validate(ctx context.Context, params ValidateParams) (*ValidateResult, error) {
	if !s.trackers.Supports(params.Provider, issue_tracker.CapabilityIssueSync) {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidConfig, params.Provider)
	}
	if strings.TrimSpace(params.AccessToken) == "" || strings.TrimSpace(params.Repository) == "" {
		return nil, fmt.Errorf("%w: access_token and repository are required", ErrInvalidConfig)
	}

	repo, err := s.checkCredentials(ctx, &model.Integration{
		Provider:        params.Provider,
		ProviderBaseURL: params.ProviderBaseURL,
		AccessToken:     strings.TrimSpace(params.AccessToken),
		Repository:      strings.TrimSpace(params.Repository),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return &ValidateResult{Valid: false}, nil
		}
		return nil, err
	}
	return &ValidateResult{Valid: true, Repository: repo}, nil
}

func (s *service) checkCredentials(ctx context.Context, integration *model.Integration) (*issue_tracker.Repository, error) {
	client, err := s.trackers.ClientFor(integration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	repo, err := client.GetRepository(ctx)
	if err != nil {
		s.logger.InfoContext(ctx, "tracker credential check failed", "repository", integration.Repository, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return repo, nil
}

func (s *service) installHook(ctx context.Context, integration *model.Integration) (string, string) {
	if s.publicBaseURL == "" || !s.trackers.Supports(integration.Provider, issue_tracker.CapabilityInboundWebhooks) {
		return "", ""
	}

	client, err := s.trackers.ClientFor(integration)
	if err != nil {
		return "", err.Error()
	}

	hook, err := client.CreateHook(ctx, issue_tracker.CreateHookParams{
		URL:    InboundURL(s.publicBaseURL, integration),
		Secret: integration.WebhookSecret,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registering tracker webhook failed", "error", err)
		return "", err.Error()
	}

	s.logger.InfoContext(ctx, "tracker webhook registered", "hook_id", hook.ID)
	return hook.ID, ""
}

// InboundURL is the route trackers deliver the integration's events to.
func InboundURL(publicBaseURL string, integration *model.Integration) string {
	return fmt.Sprintf("%s/webhooks/%s/%d", strings.TrimSuffix(publicBaseURL, "/"), integration.Provider, integration.ID)
}

func newIntegration(orgID int64) *model.Integration {
	return &model.Integration{
		ID:                id.New(),
		OrganizationID:    orgID,
		Enabled:           true,
		AutoSync:          true,
		SyncStatusChanges: true,
		SyncComments:      true,
		TriggerStatuses:   append([]model.FeedbackStatus(nil), DefaultTriggerStatuses...),
	}
}

func applySettings(integration *model.Integration, params ConnectParams) error {
	if params.Enabled != nil {
		integration.Enabled = *params.Enabled
	}
	if params.AutoSync != nil {
		integration.AutoSync = *params.AutoSync
	}
	if params.SyncStatusChanges != nil {
		integration.SyncStatusChanges = *params.SyncStatusChanges
	}
	if params.SyncComments != nil {
		integration.SyncComments = *params.SyncComments
	}

	if params.TriggerStatuses != nil {
		for _, status := range params.TriggerStatuses {
			if !status.Valid() {
				return fmt.Errorf("%w: unknown trigger status %q", ErrInvalidConfig, status)
			}
		}
		integration.TriggerStatuses = params.TriggerStatuses
	}

	if params.LabelMapping != nil {
		integration.LabelMapping = *params.LabelMapping
	}

	if params.StatusMapping != nil {
		for status, state := range params.StatusMapping {
			if state != string(model.ExternalStatusOpen) && state != string(model.ExternalStatusClosed) {
				return fmt.Errorf("%w: status %q must map to open or closed, got %q", ErrInvalidConfig, status, state)
			}
		}
		integration.StatusMapping = params.StatusMapping
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
