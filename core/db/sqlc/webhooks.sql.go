// source: webhooks.sql

package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const webhookSubscriptionColumns = `id, organization_id, url, secret, enabled, events, max_retries, created_at, updated_at`

const webhookEventColumns = `id, subscription_id, organization_id, event_type, payload, status, retry_count, max_retries, next_retry_at, last_response_code, last_response_body, last_error, delivered_at, created_at, updated_at`

func scanWebhookSubscription(row interface{ Scan(...any) error }) (WebhookSubscription, error) {
	var i WebhookSubscription
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.Url,
		&i.Secret,
		&i.Enabled,
		&i.Events,
		&i.MaxRetries,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanWebhookEvent(row interface{ Scan(...any) error }) (WebhookEvent, error) {
	var i WebhookEvent
	err := row.Scan(
		&i.ID,
		&i.SubscriptionID,
		&i.OrganizationID,
		&i.EventType,
		&i.Payload,
		&i.Status,
		&i.RetryCount,
		&i.MaxRetries,
		&i.NextRetryAt,
		&i.LastResponseCode,
		&i.LastResponseBody,
		&i.LastError,
		&i.DeliveredAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listWebhookSubscriptions(ctx context.Context, query string, args ...interface{}) ([]WebhookSubscription, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []WebhookSubscription{}
	for rows.Next() {
		i, err := scanWebhookSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) listWebhookEvents(ctx context.Context, query string, args ...interface{}) ([]WebhookEvent, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []WebhookEvent{}
	for rows.Next() {
		i, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createWebhookSubscription = `-- name: CreateWebhookSubscription :one
INSERT INTO webhook_subscriptions (id, organization_id, url, secret, enabled, events, max_retries)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + webhookSubscriptionColumns

type CreateWebhookSubscriptionParams struct {
	ID             int64    `json:"id"`
	OrganizationID int64    `json:"organization_id"`
	Url            string   `json:"url"`
	Secret         string   `json:"secret"`
	Enabled        bool     `json:"enabled"`
	Events         []string `json:"events"`
	MaxRetries     int32    `json:"max_retries"`
}

func (q *Queries) CreateWebhookSubscription(ctx context.Context, arg CreateWebhookSubscriptionParams) (WebhookSubscription, error) {
	row := q.db.QueryRow(ctx, createWebhookSubscription,
		arg.ID,
		arg.OrganizationID,
		arg.Url,
		arg.Secret,
		arg.Enabled,
		arg.Events,
		arg.MaxRetries,
	)
	return scanWebhookSubscription(row)
}

const getWebhookSubscription = `-- name: GetWebhookSubscription :one
SELECT ` + webhookSubscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`

func (q *Queries) GetWebhookSubscription(ctx context.Context, id int64) (WebhookSubscription, error) {
	row := q.db.QueryRow(ctx, getWebhookSubscription, id)
	return scanWebhookSubscription(row)
}

const listWebhookSubscriptionsByOrganization = `-- name: ListWebhookSubscriptionsByOrganization :many
SELECT ` + webhookSubscriptionColumns + ` FROM webhook_subscriptions WHERE organization_id = $1 ORDER BY created_at, id`

func (q *Queries) ListWebhookSubscriptionsByOrganization(ctx context.Context, organizationID int64) ([]WebhookSubscription, error) {
	return q.listWebhookSubscriptions(ctx, listWebhookSubscriptionsByOrganization, organizationID)
}

const listActiveWebhookSubscriptionsForEvent = `-- name: ListActiveWebhookSubscriptionsForEvent :many
SELECT ` + webhookSubscriptionColumns + ` FROM webhook_subscriptions
WHERE organization_id = $1
  AND enabled = true
  AND ($2::text = ANY(events) OR '*' = ANY(events))
ORDER BY id`

type ListActiveWebhookSubscriptionsForEventParams struct {
	OrganizationID int64  `json:"organization_id"`
	EventType      string `json:"event_type"`
}

func (q *Queries) ListActiveWebhookSubscriptionsForEvent(ctx context.Context, arg ListActiveWebhookSubscriptionsForEventParams) ([]WebhookSubscription, error) {
	return q.listWebhookSubscriptions(ctx, listActiveWebhookSubscriptionsForEvent, arg.OrganizationID, arg.EventType)
}

const updateWebhookSubscription = `-- name: UpdateWebhookSubscription :one
UPDATE webhook_subscriptions
SET url = $3, secret = $4, enabled = $5, events = $6, max_retries = $7, updated_at = now()
WHERE id = $1 AND organization_id = $2
RETURNING ` + webhookSubscriptionColumns

type UpdateWebhookSubscriptionParams struct {
	ID             int64    `json:"id"`
	OrganizationID int64    `json:"organization_id"`
	Url            string   `json:"url"`
	Secret         string   `json:"secret"`
	Enabled        bool     `json:"enabled"`
	Events         []string `json:"events"`
	MaxRetries     int32    `json:"max_retries"`
}

func (q *Queries) UpdateWebhookSubscription(ctx context.Context, arg UpdateWebhookSubscriptionParams) (WebhookSubscription, error) {
	row := q.db.QueryRow(ctx, updateWebhookSubscription,
		arg.ID,
		arg.OrganizationID,
		arg.Url,
		arg.Secret,
		arg.Enabled,
		arg.Events,
		arg.MaxRetries,
	)
	return scanWebhookSubscription(row)
}

const deleteWebhookSubscription = `-- name: DeleteWebhookSubscription :execrows
DELETE FROM webhook_subscriptions WHERE id = $1 AND organization_id = $2`

type DeleteWebhookSubscriptionParams struct {
	ID             int64 `json:"id"`
	OrganizationID int64 `json:"organization_id"`
}

func (q *Queries) DeleteWebhookSubscription(ctx context.Context, arg DeleteWebhookSubscriptionParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteWebhookSubscription, arg.ID, arg.OrganizationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createWebhookEvent = `-- name: CreateWebhookEvent :one
INSERT INTO webhook_events (id, subscription_id, organization_id, event_type, payload, status, max_retries, next_retry_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
RETURNING ` + webhookEventColumns

type CreateWebhookEventParams struct {
	ID             int64              `json:"id"`
	SubscriptionID int64              `json:"subscription_id"`
	OrganizationID int64              `json:"organization_id"`
	EventType      string             `json:"event_type"`
	Payload        []byte             `json:"payload"`
	MaxRetries     int32              `json:"max_retries"`
	NextRetryAt    pgtype.Timestamptz `json:"next_retry_at"`
}

func (q *Queries) CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, createWebhookEvent,
		arg.ID,
		arg.SubscriptionID,
		arg.OrganizationID,
		arg.EventType,
		arg.Payload,
		arg.MaxRetries,
		arg.NextRetryAt,
	)
	return scanWebhookEvent(row)
}

const getWebhookEvent = `-- name: GetWebhookEvent :one
SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = $1`

func (q *Queries) GetWebhookEvent(ctx context.Context, id int64) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, getWebhookEvent, id)
	return scanWebhookEvent(row)
}

const listWebhookEventsBySubscription = `-- name: ListWebhookEventsBySubscription :many
SELECT ` + webhookEventColumns + ` FROM webhook_events
WHERE subscription_id = $1
ORDER BY created_at DESC
LIMIT $2`

type ListWebhookEventsBySubscriptionParams struct {
	SubscriptionID int64 `json:"subscription_id"`
	Limit          int32 `json:"limit"`
}

func (q *Queries) ListWebhookEventsBySubscription(ctx context.Context, arg ListWebhookEventsBySubscriptionParams) ([]WebhookEvent, error) {
	return q.listWebhookEvents(ctx, listWebhookEventsBySubscription, arg.SubscriptionID, arg.Limit)
}

const listDueWebhookEvents = `-- name: ListDueWebhookEvents :many
SELECT ` + webhookEventColumns + ` FROM webhook_events
WHERE status = 'pending'
  AND next_retry_at <= now()
  AND retry_count < max_retries
ORDER BY next_retry_at
LIMIT $1`

func (q *Queries) ListDueWebhookEvents(ctx context.Context, limit int32) ([]WebhookEvent, error) {
	return q.listWebhookEvents(ctx, listDueWebhookEvents, limit)
}

const claimWebhookEvent = `-- name: ClaimWebhookEvent :one
UPDATE webhook_events
SET status = 'sending', updated_at = now()
WHERE id = $1 AND status = 'pending' AND retry_count < max_retries
RETURNING ` + webhookEventColumns

func (q *Queries) ClaimWebhookEvent(ctx context.Context, id int64) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, claimWebhookEvent, id)
	return scanWebhookEvent(row)
}

const markWebhookEventDelivered = `-- name: MarkWebhookEventDelivered :one
UPDATE webhook_events
SET status = 'delivered',
    last_response_code = $2,
    last_response_body = $3,
    last_error = NULL,
    next_retry_at = NULL,
    delivered_at = now(),
    updated_at = now()
WHERE id = $1 AND status = 'sending'
RETURNING ` + webhookEventColumns

type MarkWebhookEventDeliveredParams struct {
	ID               int64   `json:"id"`
	LastResponseCode *int32  `json:"last_response_code"`
	LastResponseBody *string `json:"last_response_body"`
}

func (q *Queries) MarkWebhookEventDelivered(ctx context.Context, arg MarkWebhookEventDeliveredParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, markWebhookEventDelivered, arg.ID, arg.LastResponseCode, arg.LastResponseBody)
	return scanWebhookEvent(row)
}

const recordWebhookEventFailure = `-- name: RecordWebhookEventFailure :one
UPDATE webhook_events
SET status = $2,
    retry_count = $3,
    next_retry_at = $4,
    last_response_code = $5,
    last_response_body = $6,
    last_error = $7,
    updated_at = now()
WHERE id = $1 AND status = 'sending'
RETURNING ` + webhookEventColumns

type RecordWebhookEventFailureParams struct {
	ID               int64              `json:"id"`
	Status           string             `json:"status"`
	RetryCount       int32              `json:"retry_count"`
	NextRetryAt      pgtype.Timestamptz `json:"next_retry_at"`
	LastResponseCode *int32             `json:"last_response_code"`
	LastResponseBody *string            `json:"last_response_body"`
	LastError        *string            `json:"last_error"`
}

func (q *Queries) RecordWebhookEventFailure(ctx context.Context, arg RecordWebhookEventFailureParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, recordWebhookEventFailure,
		arg.ID,
		arg.Status,
		arg.RetryCount,
		arg.NextRetryAt,
		arg.LastResponseCode,
		arg.LastResponseBody,
		arg.LastError,
	)
	return scanWebhookEvent(row)
}

const failWebhookEvent = `-- name: FailWebhookEvent :one
UPDATE webhook_events
SET status = 'failed', next_retry_at = NULL, last_error = $2, updated_at = now()
WHERE id = $1 AND status IN ('pending', 'sending')
RETURNING ` + webhookEventColumns

type FailWebhookEventParams struct {
	ID        int64   `json:"id"`
	LastError *string `json:"last_error"`
}

func (q *Queries) FailWebhookEvent(ctx context.Context, arg FailWebhookEventParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, failWebhookEvent, arg.ID, arg.LastError)
	return scanWebhookEvent(row)
}

const listStaleSendingWebhookEvents = `-- name: ListStaleSendingWebhookEvents :many
SELECT ` + webhookEventColumns + ` FROM webhook_events
WHERE status = 'sending' AND updated_at < $1
ORDER BY updated_at
LIMIT $2`

type ListStaleSendingWebhookEventsParams struct {
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
	Limit     int32              `json:"limit"`
}

func (q *Queries) ListStaleSendingWebhookEvents(ctx context.Context, arg ListStaleSendingWebhookEventsParams) ([]WebhookEvent, error) {
	return q.listWebhookEvents(ctx, listStaleSendingWebhookEvents, arg.UpdatedAt, arg.Limit)
}

const resetWebhookEventForReplay = `-- name: ResetWebhookEventForReplay :one
UPDATE webhook_events
SET status = 'pending', retry_count = 0, next_retry_at = now(), last_error = NULL, updated_at = now()
WHERE id = $1 AND organization_id = $2 AND status = 'failed'
RETURNING ` + webhookEventColumns

type ResetWebhookEventForReplayParams struct {
	ID             int64 `json:"id"`
	OrganizationID int64 `json:"organization_id"`
}

func (q *Queries) ResetWebhookEventForReplay(ctx context.Context, arg ResetWebhookEventForReplayParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, resetWebhookEventForReplay, arg.ID, arg.OrganizationID)
	return scanWebhookEvent(row)
}
