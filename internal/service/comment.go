package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issuesync"
	"echo.app/relay/internal/store"
)

// CommentSyncer is the part of issuesync.CommentMirror the services drive.
type CommentSyncer interface {
	SyncCommentToExternal(ctx context.Context, commentID int64) error
	CreateFromExternalEvent(ctx context.Context, params issuesync.ExternalCommentParams) (*model.Comment, bool, error)
	SyncAllPendingComments(ctx context.Context, feedbackID int64) (int, error)
}

type CreateCommentParams struct {
	OrganizationID int64
	FeedbackID     int64
	AuthorID       *int64
	AuthorName     string
	Content        string
	IsInternal     bool
}

type CommentService interface {
	Create(ctx context.Context, params CreateCommentParams) (*model.Comment, error)
	List(ctx context.Context, orgID, feedbackID int64) ([]model.Comment, error)
	SyncPending(ctx context.Context, orgID, feedbackID int64) (int, error)
}

type commentService struct {
	comments store.CommentStore
	feedback FeedbackService
	mirror   CommentSyncer
	events   EventEmitter
	logger   *slog.Logger
}

func NewCommentService(
	comments store.CommentStore,
	feedback FeedbackService,
	mirror CommentSyncer,
	events EventEmitter,
	logger *slog.Logger,
) CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &commentService{
		comments: comments,
		feedback: feedback,
		mirror:   mirror,
		events:   events,
		logger:   logger,
	}
}

// Create stores the comment and mirrors it to the linked issue. Mirroring
// failures are logged; the comment stays pending for SyncPending.
func (s *commentService) Create(ctx context.Context, params CreateCommentParams) (*model.Comment, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	author := strings.TrimSpace(params.AuthorName)
	if author == "" {
		return nil, fmt.Errorf("%w: author_name is required", ErrInvalidInput)
	}

	if _, err := s.feedback.Get(ctx, params.OrganizationID, params.FeedbackID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:         id.New(),
		FeedbackID: params.FeedbackID,
		AuthorID:   params.AuthorID,
		AuthorName: author,
		Content:    content,
		IsInternal: params.IsInternal,
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &params.OrganizationID,
		FeedbackID:     &params.FeedbackID,
		CommentID:      &comment.ID,
		Component:      "echo.service.comment",
	})

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	if s.events != nil {
		if err := s.events.Emit(ctx, params.OrganizationID, model.EventCommentCreated, model.CommentEventData{Comment: comment}); err != nil {
			s.logger.ErrorContext(ctx, "emitting webhook event failed", "event_type", model.EventCommentCreated, "error", err)
		}
	}

	if comment.IsInternal {
		return comment, nil
	}

	if err := s.mirror.SyncCommentToExternal(ctx, comment.ID); err != nil {
		s.logger.WarnContext(ctx, "mirroring comment failed; left pending", "error", err)
		return comment, nil
	}

	if synced, err := s.comments.GetByID(ctx, comment.ID); err == nil {
		return synced, nil
	}
	return comment, nil
}

func (s *commentService) List(ctx context.Context, orgID, feedbackID int64) ([]model.Comment, error) {
	if _, err := s.feedback.Get(ctx, orgID, feedbackID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByFeedback(ctx, feedbackID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// SyncPending retries every local comment that has not reached the tracker yet.
func (s *commentService) SyncPending(ctx context.Context, orgID, feedbackID int64) (int, error) {
	if _, err := s.feedback.Get(ctx, orgID, feedbackID); err != nil {
		return 0, err
	}
	return s.mirror.SyncAllPendingComments(ctx, feedbackID)
}
