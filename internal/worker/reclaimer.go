package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"echo.app/relay/common/logger"
	"echo.app/relay/internal/queue"
)

// StreamClient is the subset of *redis.Client the reclaimer needs.
type StreamClient interface {
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
}

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries sends a message to the DLQ once Redis has handed it out
	// this many times without an ack.
	MaxDeliveries int64
}

// RedisReclaimer periodically reclaims stale pending messages: a worker that
// died after XREADGROUP but before XACK leaves them behind.
type RedisReclaimer struct {
	client    StreamClient
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor
	logger    *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client StreamClient, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor, log *slog.Logger) *RedisReclaimer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "echo.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream,
		"group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// ReclaimOnce performs one reclaim cycle and returns how many messages it
// took over.
func (r *RedisReclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}

	if len(pending) == 0 {
		return 0, nil
	}

	r.logger.InfoContext(ctx, "found stale pending messages", "count", len(pending))

	claimed := 0
	for _, p := range pending {
		ok, err := r.reclaimMessage(ctx, p)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to reclaim message",
				"error", err,
				"message_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			continue
		}
		if ok {
			claimed++
		}
	}

	return claimed, nil
}

func (r *RedisReclaimer) reclaimMessage(ctx context.Context, pending redis.XPendingExt) (bool, error) {
	msgID := pending.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	r.logger.InfoContext(ctx, "reclaiming stale message",
		"original_consumer", pending.Consumer,
		"idle_time", pending.Idle,
		"retry_count", pending.RetryCount)

	messages, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("xclaim: %w", err)
	}

	if len(messages) == 0 {
		r.logger.DebugContext(ctx, "message already reclaimed by another worker")
		return false, nil
	}

	msg := messages[0]

	parsed, err := queue.ParseMessage(msg)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to parse reclaimed message, sending to DLQ", "error", err)
		return true, r.consumer.SendDLQ(ctx, queue.Message{ID: msg.ID, Raw: msg}, err.Error())
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WebhookEventID: &parsed.WebhookEventID,
	})

	if pending.RetryCount >= r.cfg.MaxDeliveries {
		reason := fmt.Sprintf("unacked after %d deliveries", pending.RetryCount)
		r.logger.ErrorContext(ctx, "reclaimed message exhausted, sending to DLQ", "retry_count", pending.RetryCount)
		return true, r.consumer.SendDLQ(ctx, parsed, reason)
	}

	start := time.Now()
	if err := r.processor(ctx, parsed); err != nil {
		return true, fmt.Errorf("processing reclaimed message: %w", err)
	}

	r.logger.InfoContext(ctx, "reclaimed message processed successfully",
		"duration_ms", time.Since(start).Milliseconds())

	return true, nil
}
