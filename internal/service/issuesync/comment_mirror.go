package issuesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issue_tracker"
	"echo.app/relay/internal/store"
)

// ExternalCommentParams describes a comment reported by an inbound tracker webhook.
type ExternalCommentParams struct {
	FeedbackID        int64
	ExternalCommentID string
	AuthorHandle      string
	Content           string
	URL               string
}

// CommentMirror copies comments between feedback and its external issue.
// Outbound sync is at-most-once per comment, gated on the external comment id.
type CommentMirror struct {
	comments     store.CommentStore
	feedback     store.FeedbackStore
	integrations store.IntegrationStore
	trackers     TrackerProvider
	events       EventEmitter
	logger       *slog.Logger
}

func NewCommentMirror(
	comments store.CommentStore,
	feedback store.FeedbackStore,
	integrations store.IntegrationStore,
	trackers TrackerProvider,
	events EventEmitter,
	log *slog.Logger,
) *CommentMirror {
	if log == nil {
		log = slog.Default()
	}
	return &CommentMirror{
		comments:     comments,
		feedback:     feedback,
		integrations: integrations,
		trackers:     trackers,
		events:       events,
		logger:       log,
	}
}

// FormatCommentBody renders a local comment for the tracker.
func FormatCommentBody(author, content string) string {
	return fmt.Sprintf("%s commented:\n\n%s", author, content)
}

// SyncCommentToExternal pushes one local comment to the linked issue. It is a
// no-op for comments that already carry an external id, came from the tracker,
// or are internal, and when the feedback is unlinked or comment sync is off.
func (m *CommentMirror) SyncCommentToExternal(ctx context.Context, commentID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CommentID: &commentID,
		Component: "echo.issuesync.comment_mirror",
	})

	comment, err := m.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetching comment: %w", err)
	}
	if !comment.NeedsOutboundSync() {
		return nil
	}

	target, err := m.target(ctx, comment.FeedbackID)
	if err != nil || target == nil {
		return err
	}

	return m.push(ctx, target, comment)
}

// CreateFromExternalEvent records a tracker comment locally. It returns the
// existing comment and created=false when one with the same external id exists.
func (m *CommentMirror) CreateFromExternalEvent(ctx context.Context, params ExternalCommentParams) (*model.Comment, bool, error) {
	if params.ExternalCommentID == "" {
		return nil, false, errors.New("external comment id is required")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &params.FeedbackID,
		Component:  "echo.issuesync.comment_mirror",
	})

	existing, err := m.comments.GetByExternalID(ctx, params.FeedbackID, params.ExternalCommentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up external comment: %w", err)
	}

	comment := &model.Comment{
		ID:                 id.New(),
		FeedbackID:         params.FeedbackID,
		AuthorName:         params.AuthorHandle,
		Content:            params.Content,
		ExternalCommentID:  &params.ExternalCommentID,
		ExternalCommentURL: &params.URL,
	}

	created, err := m.comments.CreateExternal(ctx, comment)
	if err != nil {
		return nil, false, fmt.Errorf("creating external comment: %w", err)
	}
	if !created {
		// lost the insert race to a concurrent delivery of the same event
		existing, err := m.comments.GetByExternalID(ctx, params.FeedbackID, params.ExternalCommentID)
		if err != nil {
			return nil, false, fmt.Errorf("looking up external comment: %w", err)
		}
		return existing, false, nil
	}

	m.logger.InfoContext(ctx, "external comment mirrored", "comment_id", comment.ID, "external_comment_id", params.ExternalCommentID)

	if fb, err := m.feedback.GetByID(ctx, params.FeedbackID); err == nil && m.events != nil {
		if err := m.events.Emit(ctx, fb.OrganizationID, model.EventCommentCreated, model.CommentEventData{Comment: comment}); err != nil {
			m.logger.ErrorContext(ctx, "emitting webhook event failed", "event_type", model.EventCommentCreated, "error", err)
		}
	}

	return comment, true, nil
}

// SyncAllPendingComments pushes every unsynced local comment of the feedback,
// oldest first and one at a time. It stops at the first tracker error and
// returns it together with the number synced before it.
func (m *CommentMirror) SyncAllPendingComments(ctx context.Context, feedbackID int64) (int, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &feedbackID,
		Component:  "echo.issuesync.comment_mirror",
	})

	target, err := m.target(ctx, feedbackID)
	if err != nil || target == nil {
		return 0, err
	}

	pending, err := m.comments.ListPendingOutbound(ctx, feedbackID)
	if err != nil {
		return 0, fmt.Errorf("listing pending comments: %w", err)
	}

	synced := 0
	for i := range pending {
		if err := m.push(ctx, target, &pending[i]); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}

type mirrorTarget struct {
	client      issue_tracker.Client
	issueNumber int64
}

// target resolves where comments of the feedback go, or nil when they don't.
func (m *CommentMirror) target(ctx context.Context, feedbackID int64) (*mirrorTarget, error) {
	fb, err := m.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching feedback: %w", err)
	}
	if !fb.IsLinked() {
		return nil, nil
	}

	integration, err := m.integrations.GetByOrganization(ctx, fb.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	if !integration.Enabled || !integration.SyncComments {
		return nil, nil
	}
	if !m.trackers.Supports(integration.Provider, issue_tracker.CapabilityCommentSync) {
		return nil, nil
	}

	client, err := m.trackers.ClientFor(integration)
	if err != nil {
		return nil, err
	}
	return &mirrorTarget{client: client, issueNumber: *fb.ExternalIssueNumber}, nil
}

func (m *CommentMirror) push(ctx context.Context, target *mirrorTarget, comment *model.Comment) error {
	external, err := target.client.CreateComment(ctx, target.issueNumber, FormatCommentBody(comment.AuthorName, comment.Content))
	if err != nil {
		return fmt.Errorf("creating external comment: %w", err)
	}

	_, err = m.comments.MarkSynced(ctx, comment.ID, external.ID, external.URL)
	if errors.Is(err, store.ErrDuplicateExternalID) {
		err = m.adoptEcho(ctx, comment, external)
	}
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			m.logger.WarnContext(ctx, "comment was synced concurrently; external duplicate left in place",
				"comment_id", comment.ID, "external_comment_id", external.ID)
			return nil
		}
		return fmt.Errorf("persisting external comment id: %w", err)
	}

	m.logger.InfoContext(ctx, "comment synced to external issue", "comment_id", comment.ID, "external_comment_id", external.ID)
	return nil
}

// adoptEcho handles the tracker's webhook for our own comment arriving before
// MarkSynced: the inbound copy already holds the external id. The copy is
// dropped so the local comment can own the link.
func (m *CommentMirror) adoptEcho(ctx context.Context, comment *model.Comment, external *issue_tracker.Comment) error {
	removed, err := m.comments.DeleteExternalEcho(ctx, comment.FeedbackID, external.ID)
	if err != nil {
		return fmt.Errorf("removing echoed comment: %w", err)
	}
	m.logger.InfoContext(ctx, "dropped tracker echo of outbound comment",
		"comment_id", comment.ID, "external_comment_id", external.ID, "removed", removed)

	_, err = m.comments.MarkSynced(ctx, comment.ID, external.ID, external.URL)
	return err
}
