package service

import (
	"context"

	"echo.app/relay/core/db"
	"echo.app/relay/core/db/sqlc"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
)

// StoreProvider exposes only the stores needed by a transactional operation.
type StoreProvider interface {
	Feedback() store.FeedbackStore
	Comments() store.CommentStore
	Integrations() store.IntegrationStore
	WebhookSubscriptions() store.WebhookSubscriptionStore
	WebhookEvents() store.WebhookEventStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		stores := store.NewStores(q)
		return fn(stores)
	})
}

type webhookTxRunner struct {
	next TxRunner
}

// NewWebhookTxRunner narrows a TxRunner to what the delivery engine needs.
func NewWebhookTxRunner(next TxRunner) webhook.TxRunner {
	return &webhookTxRunner{next: next}
}

func (r *webhookTxRunner) WithTx(ctx context.Context, fn func(stores webhook.StoreProvider) error) error {
	return r.next.WithTx(ctx, func(stores StoreProvider) error {
		return fn(stores)
	})
}
