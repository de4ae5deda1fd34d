package store

import (
	"echo.app/relay/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Feedback() FeedbackStore {
	return newFeedbackStore(s.queries)
}

func (s *Stores) Comments() CommentStore {
	return newCommentStore(s.queries)
}

func (s *Stores) Integrations() IntegrationStore {
	return newIntegrationStore(s.queries)
}

func (s *Stores) WebhookSubscriptions() WebhookSubscriptionStore {
	return newWebhookSubscriptionStore(s.queries)
}

func (s *Stores) WebhookEvents() WebhookEventStore {
	return newWebhookEventStore(s.queries)
}
