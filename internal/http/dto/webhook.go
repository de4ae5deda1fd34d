package dto

import (
	"encoding/json"
	"time"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

type CreateSubscriptionRequest struct {
	URL        string   `json:"url" binding:"required,url"`
	Secret     *string  `json:"secret,omitempty"`
	Events     []string `json:"events" binding:"required,min=1"`
	Enabled    *bool    `json:"enabled,omitempty"`
	MaxRetries *int32   `json:"max_retries,omitempty"`
}

type UpdateSubscriptionRequest struct {
	URL        *string   `json:"url,omitempty" binding:"omitempty,url"`
	Secret     *string   `json:"secret,omitempty"`
	Events     *[]string `json:"events,omitempty"`
	Enabled    *bool     `json:"enabled,omitempty"`
	MaxRetries *int32    `json:"max_retries,omitempty"`
}

type SubscriptionResponse struct {
	ID         int64     `json:"id,string"`
	URL        string    `json:"url"`
	Events     []string  `json:"events"`
	Enabled    bool      `json:"enabled"`
	MaxRetries int32     `json:"max_retries"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ToSubscriptionResponse(s *model.WebhookSubscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:         s.ID,
		URL:        s.URL,
		Events:     s.Events,
		Enabled:    s.Enabled,
		MaxRetries: s.MaxRetries,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// CreateSubscriptionResponse is the only response that shows the signing secret.
type CreateSubscriptionResponse struct {
	*SubscriptionResponse
	Secret string `json:"secret"`
}

type WebhookEventResponse struct {
	ID               int64           `json:"id,string"`
	SubscriptionID   int64           `json:"subscription_id,string"`
	EventType        string          `json:"event_type"`
	Payload          json.RawMessage `json:"payload"`
	Status           string          `json:"status"`
	RetryCount       int32           `json:"retry_count"`
	MaxRetries       int32           `json:"max_retries"`
	NextRetryAt      *time.Time      `json:"next_retry_at,omitempty"`
	LastResponseCode *int32          `json:"last_response_code,omitempty"`
	LastResponseBody *string         `json:"last_response_body,omitempty"`
	LastError        *string         `json:"last_error,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func ToWebhookEventResponse(e *model.WebhookEvent) *WebhookEventResponse {
	return &WebhookEventResponse{
		ID:               e.ID,
		SubscriptionID:   e.SubscriptionID,
		EventType:        e.EventType,
		Payload:          e.Payload,
		Status:           string(e.Status),
		RetryCount:       e.RetryCount,
		MaxRetries:       e.MaxRetries,
		NextRetryAt:      e.NextRetryAt,
		LastResponseCode: e.LastResponseCode,
		LastResponseBody: e.LastResponseBody,
		LastError:        e.LastError,
		DeliveredAt:      e.DeliveredAt,
		CreatedAt:        e.CreatedAt,
	}
}

func ToWebhookEventResponses(events []model.WebhookEvent) []*WebhookEventResponse {
	out := make([]*WebhookEventResponse, len(events))
	for i := range events {
		out[i] = ToWebhookEventResponse(&events[i])
	}
	return out
}

// InboundWebhookResponse acknowledges a tracker delivery.
type InboundWebhookResponse struct {
	Status     string `json:"status"`
	Action     string `json:"action"`
	FeedbackID *int64 `json:"feedback_id,string,omitempty"`
	CommentID  *int64 `json:"comment_id,string,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func ToInboundWebhookResponse(r *service.InboundResult) *InboundWebhookResponse {
	return &InboundWebhookResponse{
		Status:     "ok",
		Action:     string(r.Action),
		FeedbackID: r.FeedbackID,
		CommentID:  r.CommentID,
		Reason:     r.Reason,
	}
}
