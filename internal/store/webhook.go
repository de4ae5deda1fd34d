package store

import (
	"context"
	"time"

	"echo.app/relay/core/db/sqlc"
	"echo.app/relay/internal/model"
	"github.com/jackc/pgx/v5/pgtype"
)

type webhookSubscriptionStore struct {
	queries *sqlc.Queries
}

func newWebhookSubscriptionStore(queries *sqlc.Queries) WebhookSubscriptionStore {
	return &webhookSubscriptionStore{queries: queries}
}

func (s *webhookSubscriptionStore) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	row, err := s.queries.CreateWebhookSubscription(ctx, sqlc.CreateWebhookSubscriptionParams{
		ID:             sub.ID,
		OrganizationID: sub.OrganizationID,
		Url:            sub.URL,
		Secret:         sub.Secret,
		Enabled:        sub.Enabled,
		Events:         sub.Events,
		MaxRetries:     sub.MaxRetries,
	})
	if err != nil {
		return err
	}
	*sub = *toWebhookSubscriptionModel(row)
	return nil
}

func (s *webhookSubscriptionStore) GetByID(ctx context.Context, id int64) (*model.WebhookSubscription, error) {
	row, err := s.queries.GetWebhookSubscription(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toWebhookSubscriptionModel(row), nil
}

func (s *webhookSubscriptionStore) ListByOrganization(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error) {
	rows, err := s.queries.ListWebhookSubscriptionsByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return toWebhookSubscriptionModels(rows), nil
}

func (s *webhookSubscriptionStore) ListActiveForEvent(ctx context.Context, orgID int64, eventType string) ([]model.WebhookSubscription, error) {
	rows, err := s.queries.ListActiveWebhookSubscriptionsForEvent(ctx, sqlc.ListActiveWebhookSubscriptionsForEventParams{
		OrganizationID: orgID,
		EventType:      eventType,
	})
	if err != nil {
		return nil, err
	}
	return toWebhookSubscriptionModels(rows), nil
}

func (s *webhookSubscriptionStore) Update(ctx context.Context, sub *model.WebhookSubscription) error {
	row, err := s.queries.UpdateWebhookSubscription(ctx, sqlc.UpdateWebhookSubscriptionParams{
		ID:             sub.ID,
		OrganizationID: sub.OrganizationID,
		Url:            sub.URL,
		Secret:         sub.Secret,
		Enabled:        sub.Enabled,
		Events:         sub.Events,
		MaxRetries:     sub.MaxRetries,
	})
	if err != nil {
		return notFound(err)
	}
	*sub = *toWebhookSubscriptionModel(row)
	return nil
}

func (s *webhookSubscriptionStore) Delete(ctx context.Context, id, orgID int64) error {
	n, err := s.queries.DeleteWebhookSubscription(ctx, sqlc.DeleteWebhookSubscriptionParams{
		ID:             id,
		OrganizationID: orgID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type webhookEventStore struct {
	queries *sqlc.Queries
}

func newWebhookEventStore(queries *sqlc.Queries) WebhookEventStore {
	return &webhookEventStore{queries: queries}
}

func (s *webhookEventStore) Create(ctx context.Context, event *model.WebhookEvent) error {
	row, err := s.queries.CreateWebhookEvent(ctx, sqlc.CreateWebhookEventParams{
		ID:             event.ID,
		SubscriptionID: event.SubscriptionID,
		OrganizationID: event.OrganizationID,
		EventType:      event.EventType,
		Payload:        event.Payload,
		MaxRetries:     event.MaxRetries,
		NextRetryAt:    timeToPgTimestamptz(event.NextRetryAt),
	})
	if err != nil {
		return err
	}
	*event = *toWebhookEventModel(row)
	return nil
}

func (s *webhookEventStore) GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error) {
	row, err := s.queries.GetWebhookEvent(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) ListBySubscription(ctx context.Context, subscriptionID int64, limit int32) ([]model.WebhookEvent, error) {
	rows, err := s.queries.ListWebhookEventsBySubscription(ctx, sqlc.ListWebhookEventsBySubscriptionParams{
		SubscriptionID: subscriptionID,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	return toWebhookEventModels(rows), nil
}

func (s *webhookEventStore) ListDue(ctx context.Context, limit int32) ([]model.WebhookEvent, error) {
	rows, err := s.queries.ListDueWebhookEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toWebhookEventModels(rows), nil
}

func (s *webhookEventStore) Claim(ctx context.Context, id int64) (*model.WebhookEvent, error) {
	row, err := s.queries.ClaimWebhookEvent(ctx, id)
	if err != nil {
		return nil, conflict(err)
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) MarkDelivered(ctx context.Context, id int64, responseCode int32, responseBody string) (*model.WebhookEvent, error) {
	row, err := s.queries.MarkWebhookEventDelivered(ctx, sqlc.MarkWebhookEventDeliveredParams{
		ID:               id,
		LastResponseCode: &responseCode,
		LastResponseBody: &responseBody,
	})
	if err != nil {
		return nil, conflict(err)
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) RecordFailure(ctx context.Context, failure WebhookFailure) (*model.WebhookEvent, error) {
	row, err := s.queries.RecordWebhookEventFailure(ctx, sqlc.RecordWebhookEventFailureParams{
		ID:               failure.ID,
		Status:           string(failure.Status),
		RetryCount:       failure.RetryCount,
		NextRetryAt:      timeToPgTimestamptz(failure.NextRetryAt),
		LastResponseCode: failure.ResponseCode,
		LastResponseBody: failure.ResponseBody,
		LastError:        failure.Error,
	})
	if err != nil {
		return nil, conflict(err)
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) Fail(ctx context.Context, id int64, reason string) (*model.WebhookEvent, error) {
	row, err := s.queries.FailWebhookEvent(ctx, sqlc.FailWebhookEventParams{
		ID:        id,
		LastError: &reason,
	})
	if err != nil {
		return nil, conflict(err)
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) ListStaleSending(ctx context.Context, before time.Time, limit int32) ([]model.WebhookEvent, error) {
	rows, err := s.queries.ListStaleSendingWebhookEvents(ctx, sqlc.ListStaleSendingWebhookEventsParams{
		UpdatedAt: pgtype.Timestamptz{Time: before, Valid: true},
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	return toWebhookEventModels(rows), nil
}

func (s *webhookEventStore) ResetForReplay(ctx context.Context, id, orgID int64) (*model.WebhookEvent, error) {
	row, err := s.queries.ResetWebhookEventForReplay(ctx, sqlc.ResetWebhookEventForReplayParams{
		ID:             id,
		OrganizationID: orgID,
	})
	if err != nil {
		return nil, conflict(err)
	}
	return toWebhookEventModel(row), nil
}

func toWebhookSubscriptionModel(row sqlc.WebhookSubscription) *model.WebhookSubscription {
	return &model.WebhookSubscription{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		URL:            row.Url,
		Secret:         row.Secret,
		Enabled:        row.Enabled,
		Events:         row.Events,
		MaxRetries:     row.MaxRetries,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func toWebhookSubscriptionModels(rows []sqlc.WebhookSubscription) []model.WebhookSubscription {
	result := make([]model.WebhookSubscription, len(rows))
	for i, row := range rows {
		result[i] = *toWebhookSubscriptionModel(row)
	}
	return result
}

func toWebhookEventModel(row sqlc.WebhookEvent) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:               row.ID,
		SubscriptionID:   row.SubscriptionID,
		OrganizationID:   row.OrganizationID,
		EventType:        row.EventType,
		Payload:          row.Payload,
		Status:           model.WebhookEventStatus(row.Status),
		RetryCount:       row.RetryCount,
		MaxRetries:       row.MaxRetries,
		NextRetryAt:      pgTimestamptzToTime(row.NextRetryAt),
		LastResponseCode: row.LastResponseCode,
		LastResponseBody: row.LastResponseBody,
		LastError:        row.LastError,
		DeliveredAt:      pgTimestamptzToTime(row.DeliveredAt),
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}

func toWebhookEventModels(rows []sqlc.WebhookEvent) []model.WebhookEvent {
	result := make([]model.WebhookEvent, len(rows))
	for i, row := range rows {
		result[i] = *toWebhookEventModel(row)
	}
	return result
}
