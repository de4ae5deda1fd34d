package model

import (
	"encoding/json"
	"time"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusSending   WebhookEventStatus = "sending"
	WebhookEventStatusDelivered WebhookEventStatus = "delivered"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// Event types emitted to subscribers.
const (
	EventFeedbackCreated       = "feedback.created"
	EventFeedbackStatusChanged = "feedback.status_changed"
	EventFeedbackSynced        = "feedback.synced"
	EventCommentCreated        = "comment.created"

	// EventWildcard subscribes to every event type.
	EventWildcard = "*"
)

// KnownEventTypes lists the event types a subscription may name.
var KnownEventTypes = []string{
	EventFeedbackCreated,
	EventFeedbackStatusChanged,
	EventFeedbackSynced,
	EventCommentCreated,
}

const DefaultWebhookMaxRetries int32 = 3

type WebhookSubscription struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	URL            string    `json:"url"`
	Secret         string    `json:"-"`
	Enabled        bool      `json:"enabled"`
	Events         []string  `json:"events"`
	MaxRetries     int32     `json:"max_retries"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type WebhookEvent struct {
	ID               int64              `json:"id"`
	SubscriptionID   int64              `json:"subscription_id"`
	OrganizationID   int64              `json:"organization_id"`
	EventType        string             `json:"event_type"`
	Payload          json.RawMessage    `json:"payload"`
	Status           WebhookEventStatus `json:"status"`
	RetryCount       int32              `json:"retry_count"`
	MaxRetries       int32              `json:"max_retries"`
	NextRetryAt      *time.Time         `json:"next_retry_at,omitempty"`
	LastResponseCode *int32             `json:"last_response_code,omitempty"`
	LastResponseBody *string            `json:"last_response_body,omitempty"`
	LastError        *string            `json:"last_error,omitempty"`
	DeliveredAt      *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Envelope is the JSON body POSTed to subscribers.
type Envelope struct {
	ID             int64           `json:"id" jsonschema:"description=Event id; stable across retries"`
	Type           string          `json:"type" jsonschema:"enum=feedback.created,enum=feedback.status_changed,enum=feedback.synced,enum=comment.created"`
	OrganizationID int64           `json:"organization_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Data           json.RawMessage `json:"data" jsonschema:"type=object"`
}

// WebhookAttempt is the outcome of one delivery attempt.
type WebhookAttempt struct {
	StatusCode int
	Body       string
	Err        error
}

// OK reports a 2xx response.
func (a WebhookAttempt) OK() bool {
	return a.Err == nil && a.StatusCode >= 200 && a.StatusCode < 300
}

// FeedbackEventData is the data block of feedback.created and feedback.synced.
type FeedbackEventData struct {
	Feedback *Feedback `json:"feedback"`
}

// FeedbackStatusChangedData is the data block of feedback.status_changed.
type FeedbackStatusChangedData struct {
	Feedback  *Feedback      `json:"feedback"`
	OldStatus FeedbackStatus `json:"old_status"`
	NewStatus FeedbackStatus `json:"new_status"`
	Source    string         `json:"source" jsonschema:"enum=local,enum=external"`
}

// CommentEventData is the data block of comment.created.
type CommentEventData struct {
	Comment *Comment `json:"comment"`
}

const (
	ChangeSourceLocal    = "local"
	ChangeSourceExternal = "external"
)
