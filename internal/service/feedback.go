package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/store"
)

var (
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrInvalidStatus    = errors.New("invalid feedback status")
	ErrInvalidInput     = errors.New("invalid input")
)

const maxTitleLength = 256

// SyncOrchestrator is the part of issuesync.Orchestrator the services drive.
type SyncOrchestrator interface {
	SyncToExternal(ctx context.Context, feedbackID int64) (*model.Feedback, error)
	HandleStatusChange(ctx context.Context, feedbackID int64, oldStatus, newStatus model.FeedbackStatus)
	SyncFromExternal(ctx context.Context, feedbackID int64) (bool, error)
	ApplyExternalState(ctx context.Context, feedbackID int64, state model.ExternalStatus) (bool, error)
}

// EventEmitter publishes events to the organization's webhook subscribers.
type EventEmitter interface {
	Emit(ctx context.Context, orgID int64, eventType string, data any) error
}

type CreateFeedbackParams struct {
	OrganizationID int64
	Title          string
	Description    string
	Type           model.FeedbackType
	Priority       model.FeedbackPriority
	Status         model.FeedbackStatus
}

type CreateFeedbackResult struct {
	Feedback *model.Feedback
	// SyncError is set when the feedback was stored but creating its external
	// issue failed. The feedback stays unlinked and can be synced later.
	SyncError error
}

type FeedbackService interface {
	Create(ctx context.Context, params CreateFeedbackParams) (*CreateFeedbackResult, error)
	Get(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, error)
	UpdateStatus(ctx context.Context, orgID, feedbackID int64, status model.FeedbackStatus) (*model.Feedback, error)
	Sync(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, error)
	Pull(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, bool, error)
}

type feedbackService struct {
	feedback     store.FeedbackStore
	integrations store.IntegrationStore
	sync         SyncOrchestrator
	events       EventEmitter
	logger       *slog.Logger
}

func NewFeedbackService(
	feedback store.FeedbackStore,
	integrations store.IntegrationStore,
	sync SyncOrchestrator,
	events EventEmitter,
	logger *slog.Logger,
) FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &feedbackService{
		feedback:     feedback,
		integrations: integrations,
		sync:         sync,
		events:       events,
		logger:       logger,
	}
}

func (s *feedbackService) Create(ctx context.Context, params CreateFeedbackParams) (*CreateFeedbackResult, error) {
	fb, err := newFeedback(params)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &fb.OrganizationID,
		FeedbackID:     &fb.ID,
		Component:      "echo.service.feedback",
	})

	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("creating feedback: %w", err)
	}
	s.emit(ctx, fb.OrganizationID, model.EventFeedbackCreated, model.FeedbackEventData{Feedback: fb})

	result := &CreateFeedbackResult{Feedback: fb}

	autoSync, err := s.shouldAutoSync(ctx, fb)
	if err != nil {
		s.logger.WarnContext(ctx, "checking auto-sync failed", "error", err)
		return result, nil
	}
	if !autoSync {
		return result, nil
	}

	linked, err := s.sync.SyncToExternal(ctx, fb.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "auto-sync on create failed", "error", err)
		result.SyncError = err
		return result, nil
	}
	if linked != nil {
		result.Feedback = linked
	}
	return result, nil
}

func (s *feedbackService) shouldAutoSync(ctx context.Context, fb *model.Feedback) (bool, error) {
	integration, err := s.integrations.GetByOrganization(ctx, fb.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetching integration: %w", err)
	}
	return integration.Enabled && integration.AutoSync && integration.IsTrigger(fb.Status), nil
}

func (s *feedbackService) Get(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, error) {
	fb, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("fetching feedback: %w", err)
	}
	if fb.OrganizationID != orgID {
		return nil, ErrFeedbackNotFound
	}
	return fb, nil
}

// UpdateStatus stores the new status, notifies subscribers, then pushes the
// change to the external issue. Tracker failures never fail the update.
func (s *feedbackService) UpdateStatus(ctx context.Context, orgID, feedbackID int64, status model.FeedbackStatus) (*model.Feedback, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	fb, err := s.Get(ctx, orgID, feedbackID)
	if err != nil {
		return nil, err
	}
	if fb.Status == status {
		return fb, nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &orgID,
		FeedbackID:     &feedbackID,
		Component:      "echo.service.feedback",
	})

	updated, err := s.feedback.UpdateStatus(ctx, feedbackID, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("updating feedback status: %w", err)
	}

	s.emit(ctx, orgID, model.EventFeedbackStatusChanged, model.FeedbackStatusChangedData{
		Feedback:  updated,
		OldStatus: fb.Status,
		NewStatus: status,
		Source:    model.ChangeSourceLocal,
	})

	s.sync.HandleStatusChange(ctx, feedbackID, fb.Status, status)

	return s.reload(ctx, updated), nil
}

// Sync creates the external issue now, surfacing tracker errors.
func (s *feedbackService) Sync(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, error) {
	fb, err := s.Get(ctx, orgID, feedbackID)
	if err != nil {
		return nil, err
	}

	linked, err := s.sync.SyncToExternal(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if linked != nil {
		return linked, nil
	}
	return s.reload(ctx, fb), nil
}

// Pull refreshes the local status from the external issue.
func (s *feedbackService) Pull(ctx context.Context, orgID, feedbackID int64) (*model.Feedback, bool, error) {
	fb, err := s.Get(ctx, orgID, feedbackID)
	if err != nil {
		return nil, false, err
	}

	changed, err := s.sync.SyncFromExternal(ctx, feedbackID)
	if err != nil {
		return nil, false, err
	}
	return s.reload(ctx, fb), changed, nil
}

// reload re-reads the feedback after sync side effects, falling back to the
// given copy.
func (s *feedbackService) reload(ctx context.Context, fallback *model.Feedback) *model.Feedback {
	fb, err := s.feedback.GetByID(ctx, fallback.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "re-reading feedback failed", "error", err)
		return fallback
	}
	return fb
}

func (s *feedbackService) emit(ctx context.Context, orgID int64, eventType string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, orgID, eventType, data); err != nil {
		s.logger.ErrorContext(ctx, "emitting webhook event failed", "event_type", eventType, "error", err)
	}
}

func newFeedback(params CreateFeedbackParams) (*model.Feedback, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be at most %d characters", ErrInvalidInput, maxTitleLength)
	}
	if params.OrganizationID == 0 {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidInput)
	}

	fb := &model.Feedback{
		ID:             id.New(),
		OrganizationID: params.OrganizationID,
		Title:          title,
		Description:    strings.TrimSpace(params.Description),
		Type:           params.Type,
		Priority:       params.Priority,
		Status:         params.Status,
	}
	if fb.Type == "" {
		fb.Type = model.FeedbackTypeOther
	}
	if fb.Priority == "" {
		fb.Priority = model.FeedbackPriorityMedium
	}
	if fb.Status == "" {
		fb.Status = model.FeedbackStatusNew
	}

	if !fb.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, fb.Type)
	}
	if !fb.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, fb.Priority)
	}
	if !fb.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, fb.Status)
	}
	return fb, nil
}
