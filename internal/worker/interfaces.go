package worker

import (
	"context"
	"time"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service/webhook"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Deliverer makes one delivery attempt for a queued webhook event.
type Deliverer interface {
	Deliver(ctx context.Context, eventID int64) (*model.WebhookEvent, error)
}

// Sweeper retries due webhook events and recovers ones stuck in sending.
type Sweeper interface {
	ProcessFailedWebhooks(ctx context.Context) (webhook.SweepResult, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Locker serializes the sweep across worker instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}
