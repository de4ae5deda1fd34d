package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"echo.app/relay/common/logger"
	"echo.app/relay/internal/mapper"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issuesync"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// Signature headers of inbound tracker deliveries, in canonical form.
const (
	HeaderGitHubSignature = "X-Hub-Signature-256"
	HeaderGitLabToken     = "X-Gitlab-Token"
)

type InboundAction string

const (
	InboundIgnored          InboundAction = "ignored"
	InboundStatusApplied    InboundAction = "status_applied"
	InboundStatusUnchanged  InboundAction = "status_unchanged"
	InboundCommentCreated   InboundAction = "comment_created"
	InboundCommentDuplicate InboundAction = "comment_duplicate"
)

type InboundResult struct {
	Action     InboundAction
	FeedbackID *int64
	CommentID  *int64
	Reason     string
}

type InboundParams struct {
	Provider      model.Provider
	IntegrationID int64
	Headers       map[string]string
	Body          []byte
}

// InboundService reconciles tracker webhooks with local feedback.
type InboundService interface {
	Handle(ctx context.Context, params InboundParams) (*InboundResult, error)
}

// EventMappers resolves the payload mapper of a provider.
type EventMappers interface {
	Get(provider model.Provider) (mapper.EventMapper, error)
}

type inboundService struct {
	integrations store.IntegrationStore
	feedback     store.FeedbackStore
	mappers      EventMappers
	sync         SyncOrchestrator
	mirror       CommentSyncer
	logger       *slog.Logger
}

func NewInboundService(
	integrations store.IntegrationStore,
	feedback store.FeedbackStore,
	mappers EventMappers,
	sync SyncOrchestrator,
	mirror CommentSyncer,
	logger *slog.Logger,
) InboundService {
	if logger == nil {
		logger = slog.Default()
	}
	return &inboundService{
		integrations: integrations,
		feedback:     feedback,
		mappers:      mappers,
		sync:         sync,
		mirror:       mirror,
		logger:       logger,
	}
}

// Handle verifies the delivery against the integration's webhook secret, maps
// it and applies it. Deliveries that carry nothing to sync are acknowledged
// with InboundIgnored so the tracker does not retry them.
func (s *inboundService) Handle(ctx context.Context, params InboundParams) (*InboundResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IntegrationID: &params.IntegrationID,
		Provider:      logger.Ptr(string(params.Provider)),
		Component:     "echo.service.inbound",
	})

	integration, err := s.integrations.GetByID(ctx, params.IntegrationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	if integration.Provider != params.Provider {
		return nil, ErrIntegrationNotFound
	}

	if !verifyInbound(integration, params.Headers, params.Body) {
		s.logger.WarnContext(ctx, "inbound webhook signature rejected")
		return nil, ErrInvalidSignature
	}

	if !integration.Enabled {
		return ignored("integration disabled"), nil
	}

	eventMapper, err := s.mappers.Get(integration.Provider)
	if err != nil {
		return nil, err
	}

	event, err := eventMapper.Map(ctx, params.Body, params.Headers)
	if err != nil {
		if errors.Is(err, mapper.ErrIgnored) {
			return ignored("event not synced"), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &integration.OrganizationID,
		EventType:      logger.Ptr(string(event.Type)),
	})

	fb, err := s.feedback.GetByExternalIssueNumber(ctx, integration.OrganizationID, event.IssueNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ignored("issue not linked to feedback"), nil
		}
		return nil, fmt.Errorf("fetching feedback by issue: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{FeedbackID: &fb.ID})

	switch event.Type {
	case mapper.EventIssueClosed, mapper.EventIssueReopened, mapper.EventIssueUpdated:
		return s.applyState(ctx, integration, fb, event)
	case mapper.EventCommentAdded:
		return s.addComment(ctx, integration, fb, event)
	}
	return ignored("event not synced"), nil
}

func (s *inboundService) applyState(ctx context.Context, integration *model.Integration, fb *model.Feedback, event *mapper.Event) (*InboundResult, error) {
	if !integration.SyncStatusChanges {
		return ignored("status sync disabled"), nil
	}

	state := event.State
	if state == "" {
		switch event.Type {
		case mapper.EventIssueClosed:
			state = model.ExternalStatusClosed
		case mapper.EventIssueReopened:
			state = model.ExternalStatusOpen
		default:
			return ignored("event carries no issue state"), nil
		}
	}

	changed, err := s.sync.ApplyExternalState(ctx, fb.ID, state)
	if err != nil {
		return nil, fmt.Errorf("applying external state: %w", err)
	}

	result := &InboundResult{Action: InboundStatusUnchanged, FeedbackID: &fb.ID}
	if changed {
		result.Action = InboundStatusApplied
		s.logger.InfoContext(ctx, "inbound state applied", "external_status", state)
	}
	return result, nil
}

func (s *inboundService) addComment(ctx context.Context, integration *model.Integration, fb *model.Feedback, event *mapper.Event) (*InboundResult, error) {
	if !integration.SyncComments {
		return ignored("comment sync disabled"), nil
	}
	if event.Comment == nil {
		return ignored("event carries no comment"), nil
	}

	comment, created, err := s.mirror.CreateFromExternalEvent(ctx, issuesync.ExternalCommentParams{
		FeedbackID:        fb.ID,
		ExternalCommentID: event.Comment.ID,
		AuthorHandle:      event.Comment.Author,
		Content:           event.Comment.Body,
		URL:               event.Comment.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("mirroring external comment: %w", err)
	}

	result := &InboundResult{Action: InboundCommentDuplicate, FeedbackID: &fb.ID, CommentID: &comment.ID}
	if created {
		result.Action = InboundCommentCreated
	}
	return result, nil
}

func verifyInbound(integration *model.Integration, headers map[string]string, body []byte) bool {
	if integration.WebhookSecret == "" {
		return false
	}
	switch integration.Provider {
	case model.ProviderGitHub:
		return webhook.Verify(integration.WebhookSecret, body, headers[HeaderGitHubSignature])
	case model.ProviderGitLab:
		token := headers[HeaderGitLabToken]
		return subtle.ConstantTimeCompare([]byte(token), []byte(integration.WebhookSecret)) == 1
	}
	return false
}

func ignored(reason string) *InboundResult {
	return &InboundResult{Action: InboundIgnored, Reason: reason}
}
