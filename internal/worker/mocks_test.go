package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service/webhook"
)

type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	readErr  error
	ackErr   error
	acked    []string
	requeued []string
	dlq      map[string]string
}

func newMockConsumer(batches ...[]queue.Message) *mockConsumer {
	return &mockConsumer{batches: batches, dlq: map[string]string{}}
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return m.ackErr
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq[msg.ID] = errMsg
	return nil
}

func (m *mockConsumer) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

type mockDeliverer struct {
	mu        sync.Mutex
	deliverFn func(ctx context.Context, eventID int64) (*model.WebhookEvent, error)
	delivered []int64
}

func (m *mockDeliverer) Deliver(ctx context.Context, eventID int64) (*model.WebhookEvent, error) {
	m.mu.Lock()
	m.delivered = append(m.delivered, eventID)
	m.mu.Unlock()
	if m.deliverFn != nil {
		return m.deliverFn(ctx, eventID)
	}
	return &model.WebhookEvent{ID: eventID, Status: model.WebhookEventStatusDelivered}, nil
}

type mockSweeper struct {
	mu         sync.Mutex
	sweeps     int
	reclaims   []time.Duration
	sweepErr   error
	reclaimErr error
}

func (m *mockSweeper) ProcessFailedWebhooks(context.Context) (webhook.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return webhook.SweepResult{}, m.sweepErr
}

func (m *mockSweeper) ReclaimStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reclaims = append(m.reclaims, olderThan)
	return 0, m.reclaimErr
}

func (m *mockSweeper) sweepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps
}

// mockLocker runs fn unless err is set, in which case it returns err.
type mockLocker struct {
	err  error
	keys []string
	ttls []time.Duration
}

func (m *mockLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	m.keys = append(m.keys, key)
	m.ttls = append(m.ttls, ttl)
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

type mockStreamClient struct {
	pending []redis.XPendingExt
	claimed map[string]redis.XMessage
}

func (m *mockStreamClient) XPendingExt(ctx context.Context, _ *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(m.pending)
	return cmd
}

func (m *mockStreamClient) XClaim(_ context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	var out []redis.XMessage
	for _, id := range a.Messages {
		if msg, ok := m.claimed[id]; ok {
			out = append(out, msg)
		}
	}
	return redis.NewXMessageSliceCmdResult(out, nil)
}
