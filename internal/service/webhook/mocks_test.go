package webhook_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
)

type fakeSubscriptionStore struct {
	mu   sync.Mutex
	subs map[int64]*model.WebhookSubscription
}

func newFakeSubscriptionStore(subs ...*model.WebhookSubscription) *fakeSubscriptionStore {
	s := &fakeSubscriptionStore{subs: make(map[int64]*model.WebhookSubscription)}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *fakeSubscriptionStore) Create(_ context.Context, sub *model.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
	return nil
}

func (s *fakeSubscriptionStore) GetByID(_ context.Context, id int64) (*model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *sub
	return &out, nil
}

func (s *fakeSubscriptionStore) ListByOrganization(_ context.Context, orgID int64) ([]model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WebhookSubscription
	for _, sub := range s.subs {
		if sub.OrganizationID == orgID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeSubscriptionStore) ListActiveForEvent(_ context.Context, orgID int64, eventType string) ([]model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WebhookSubscription
	for _, sub := range s.subs {
		if sub.OrganizationID != orgID || !sub.Enabled {
			continue
		}
		for _, e := range sub.Events {
			if e == eventType || e == model.EventWildcard {
				out = append(out, *sub)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeSubscriptionStore) Update(_ context.Context, sub *model.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return store.ErrNotFound
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *fakeSubscriptionStore) Delete(_ context.Context, id, orgID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.OrganizationID != orgID {
		return store.ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

// fakeEventStore applies the same guarded transitions as the SQL queries.
type fakeEventStore struct {
	mu     sync.Mutex
	events map[int64]*model.WebhookEvent

	claimErr error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[int64]*model.WebhookEvent)}
}

func (s *fakeEventStore) get(id int64) model.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *fakeEventStore) all() []model.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebhookEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// put stores an event as-is, bypassing Create.
func (s *fakeEventStore) put(e model.WebhookEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = &e
}

func (s *fakeEventStore) Create(_ context.Context, event *model.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Status = model.WebhookEventStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	stored := *event
	s.events[event.ID] = &stored
	return nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id int64) (*model.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *fakeEventStore) ListBySubscription(_ context.Context, subscriptionID int64, limit int32) ([]model.WebhookEvent, error) {
	var out []model.WebhookEvent
	for _, e := range s.all() {
		if e.SubscriptionID == subscriptionID && len(out) < int(limit) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEventStore) ListDue(_ context.Context, limit int32) ([]model.WebhookEvent, error) {
	now := time.Now()
	var out []model.WebhookEvent
	for _, e := range s.all() {
		if e.Status != model.WebhookEventStatusPending || e.RetryCount >= e.MaxRetries {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		if len(out) < int(limit) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEventStore) transition(id int64, from []model.WebhookEventStatus, apply func(*model.WebhookEvent)) (*model.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrConflict
	}
	allowed := false
	for _, st := range from {
		if e.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return nil, store.ErrConflict
	}
	apply(e)
	e.UpdatedAt = time.Now()
	out := *e
	return &out, nil
}

func (s *fakeEventStore) Claim(_ context.Context, id int64) (*model.WebhookEvent, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.transition(id, []model.WebhookEventStatus{model.WebhookEventStatusPending}, func(e *model.WebhookEvent) {
		e.Status = model.WebhookEventStatusSending
	})
}

func (s *fakeEventStore) MarkDelivered(_ context.Context, id int64, code int32, body string) (*model.WebhookEvent, error) {
	return s.transition(id, []model.WebhookEventStatus{model.WebhookEventStatusSending}, func(e *model.WebhookEvent) {
		now := time.Now()
		e.Status = model.WebhookEventStatusDelivered
		e.LastResponseCode = &code
		e.LastResponseBody = &body
		e.LastError = nil
		e.NextRetryAt = nil
		e.DeliveredAt = &now
	})
}

func (s *fakeEventStore) RecordFailure(_ context.Context, f store.WebhookFailure) (*model.WebhookEvent, error) {
	return s.transition(f.ID, []model.WebhookEventStatus{model.WebhookEventStatusSending}, func(e *model.WebhookEvent) {
		if f.RetryCount > e.MaxRetries {
			panic("retry_count exceeds max_retries")
		}
		e.Status = f.Status
		e.RetryCount = f.RetryCount
		e.NextRetryAt = f.NextRetryAt
		e.LastResponseCode = f.ResponseCode
		e.LastResponseBody = f.ResponseBody
		e.LastError = f.Error
	})
}

func (s *fakeEventStore) Fail(_ context.Context, id int64, reason string) (*model.WebhookEvent, error) {
	return s.transition(id, []model.WebhookEventStatus{model.WebhookEventStatusPending, model.WebhookEventStatusSending}, func(e *model.WebhookEvent) {
		e.Status = model.WebhookEventStatusFailed
		e.NextRetryAt = nil
		e.LastError = &reason
	})
}

func (s *fakeEventStore) ListStaleSending(_ context.Context, before time.Time, limit int32) ([]model.WebhookEvent, error) {
	var out []model.WebhookEvent
	for _, e := range s.all() {
		if e.Status == model.WebhookEventStatusSending && e.UpdatedAt.Before(before) && len(out) < int(limit) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEventStore) ResetForReplay(_ context.Context, id, orgID int64) (*model.WebhookEvent, error) {
	s.mu.Lock()
	e, ok := s.events[id]
	s.mu.Unlock()
	if !ok || e.OrganizationID != orgID {
		return nil, store.ErrConflict
	}
	return s.transition(id, []model.WebhookEventStatus{model.WebhookEventStatusFailed}, func(e *model.WebhookEvent) {
		now := time.Now()
		e.Status = model.WebhookEventStatusPending
		e.RetryCount = 0
		e.NextRetryAt = &now
		e.LastError = nil
	})
}

type fakeTxRunner struct {
	events *fakeEventStore
}

func (r fakeTxRunner) WithTx(_ context.Context, fn func(stores webhook.StoreProvider) error) error {
	return fn(r)
}

func (r fakeTxRunner) WebhookEvents() store.WebhookEventStore {
	return r.events
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []queue.DeliveryMessage
	err      error
}

func (p *fakeProducer) Enqueue(_ context.Context, msg queue.DeliveryMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) eventIDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, len(p.messages))
	for i, m := range p.messages {
		ids[i] = m.WebhookEventID
	}
	return ids
}

var errRedisDown = errors.New("redis: connection refused")
