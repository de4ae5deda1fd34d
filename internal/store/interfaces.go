package store

import (
	"context"
	"errors"
	"time"

	"echo.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row because
// the row was claimed or changed by someone else first.
var ErrConflict = errors.New("conflict")

// ErrDuplicateExternalID is returned when another comment of the feedback
// already holds the external id being recorded.
var ErrDuplicateExternalID = errors.New("external id already recorded")

// ExternalIssueLink is the linkage persisted when an external issue is created.
type ExternalIssueLink struct {
	IssueID     string
	IssueNumber int64
	IssueURL    string
	Status      model.ExternalStatus
}

// FeedbackStore defines the contract for feedback data access.
// Soft-deleted feedback is reported as ErrNotFound.
type FeedbackStore interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	GetByID(ctx context.Context, id int64) (*model.Feedback, error)
	GetByExternalIssueNumber(ctx context.Context, orgID, number int64) (*model.Feedback, error)
	UpdateStatus(ctx context.Context, id int64, status model.FeedbackStatus) (*model.Feedback, error)

	// ClaimSync takes the first-sync ticket. Returns false when the feedback is
	// already linked or another caller holds a claim newer than staleBefore.
	ClaimSync(ctx context.Context, id int64, token string, staleBefore time.Time) (bool, error)
	ReleaseSyncClaim(ctx context.Context, id int64, token string) error
	// LinkExternalIssue persists the link only while token still holds the claim (ErrConflict otherwise).
	LinkExternalIssue(ctx context.Context, id int64, token string, link ExternalIssueLink) (*model.Feedback, error)
	UpdateExternalStatus(ctx context.Context, id int64, status model.ExternalStatus) (*model.Feedback, error)
	ApplyExternalState(ctx context.Context, id int64, status model.FeedbackStatus, external model.ExternalStatus) (*model.Feedback, error)
}

// CommentStore defines the contract for comment data access
type CommentStore interface {
	Create(ctx context.Context, comment *model.Comment) error
	// CreateExternal inserts an externally-originated comment. Returns false if a
	// comment with the same external id already exists for the feedback.
	CreateExternal(ctx context.Context, comment *model.Comment) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	GetByExternalID(ctx context.Context, feedbackID int64, externalID string) (*model.Comment, error)
	ListByFeedback(ctx context.Context, feedbackID int64) ([]model.Comment, error)
	// ListPendingOutbound returns local, public comments with no external id, oldest first.
	ListPendingOutbound(ctx context.Context, feedbackID int64) ([]model.Comment, error)
	// MarkSynced sets the external id once; ErrConflict if it was already set,
	// ErrDuplicateExternalID if another comment of the feedback holds it.
	MarkSynced(ctx context.Context, id int64, externalID, externalURL string) (*model.Comment, error)
	// DeleteExternalEcho removes the tracker-originated copy of an external comment.
	DeleteExternalEcho(ctx context.Context, feedbackID int64, externalID string) (int64, error)
}

// IntegrationStore defines the contract for issue-tracker integration data access
type IntegrationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Integration, error)
	GetByOrganization(ctx context.Context, orgID int64) (*model.Integration, error)
	Upsert(ctx context.Context, integration *model.Integration) error
	DeleteByOrganization(ctx context.Context, orgID int64) error
}

// WebhookSubscriptionStore defines the contract for subscriber configuration
type WebhookSubscriptionStore interface {
	Create(ctx context.Context, sub *model.WebhookSubscription) error
	GetByID(ctx context.Context, id int64) (*model.WebhookSubscription, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error)
	// ListActiveForEvent returns enabled subscriptions listening to eventType or "*".
	ListActiveForEvent(ctx context.Context, orgID int64, eventType string) ([]model.WebhookSubscription, error)
	Update(ctx context.Context, sub *model.WebhookSubscription) error
	Delete(ctx context.Context, id, orgID int64) error
}

// WebhookFailure is the state written after a failed delivery attempt.
type WebhookFailure struct {
	ID           int64
	Status       model.WebhookEventStatus
	RetryCount   int32
	NextRetryAt  *time.Time
	ResponseCode *int32
	ResponseBody *string
	Error        *string
}

// WebhookEventStore defines the contract for delivery event data access.
// Transitions out of "sending" only apply to rows still in "sending" (ErrConflict otherwise).
type WebhookEventStore interface {
	Create(ctx context.Context, event *model.WebhookEvent) error
	GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error)
	ListBySubscription(ctx context.Context, subscriptionID int64, limit int32) ([]model.WebhookEvent, error)
	ListDue(ctx context.Context, limit int32) ([]model.WebhookEvent, error)
	// Claim moves a pending event to sending. ErrConflict if it is not pending.
	Claim(ctx context.Context, id int64) (*model.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id int64, responseCode int32, responseBody string) (*model.WebhookEvent, error)
	RecordFailure(ctx context.Context, failure WebhookFailure) (*model.WebhookEvent, error)
	Fail(ctx context.Context, id int64, reason string) (*model.WebhookEvent, error)
	ListStaleSending(ctx context.Context, before time.Time, limit int32) ([]model.WebhookEvent, error)
	ResetForReplay(ctx context.Context, id, orgID int64) (*model.WebhookEvent, error)
}
