package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and workers set them once; every slog *Context call below picks them up.
type LogFields struct {
	OrganizationID *int64
	FeedbackID     *int64
	CommentID      *int64
	IntegrationID  *int64
	SubscriptionID *int64
	WebhookEventID *int64
	MessageID      *string // Redis stream message ID
	EventType      *string // e.g. "feedback.status_changed", "issues.closed"
	Provider       *string
	Component      string // e.g. "echo.issuesync.orchestrator"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.OrganizationID != nil {
		result.OrganizationID = new.OrganizationID
	}
	if new.FeedbackID != nil {
		result.FeedbackID = new.FeedbackID
	}
	if new.CommentID != nil {
		result.CommentID = new.CommentID
	}
	if new.IntegrationID != nil {
		result.IntegrationID = new.IntegrationID
	}
	if new.SubscriptionID != nil {
		result.SubscriptionID = new.SubscriptionID
	}
	if new.WebhookEventID != nil {
		result.WebhookEventID = new.WebhookEventID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Provider != nil {
		result.Provider = new.Provider
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{FeedbackID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
