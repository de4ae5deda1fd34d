package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"echo.app/relay/common/logger"
	"echo.app/relay/internal/queue"
)

type Config struct {
	MaxAttempts int
}

// Worker delivers webhook events queued on the dispatch stream. A delivery
// that fails at the subscriber is recorded on the event row and retried by
// the sweep; only store failures requeue the stream message.
type Worker struct {
	consumer  Consumer
	deliverer Deliverer
	cfg       Config
	logger    *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, deliverer Deliverer, cfg Config, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		consumer:  consumer,
		deliverer: deliverer,
		cfg:       cfg,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "echo.worker"})
	w.logger.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			w.logger.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"webhook_event_id", msg.WebhookEventID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"webhook_event_id", msg.WebhookEventID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage delivers the message's event and acks it. Exported so the
// reclaimer can reuse it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.deliver_webhook", trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:      &msg.ID,
		WebhookEventID: &msg.WebhookEventID,
		OrganizationID: msg.OrganizationID,
	})
	if msg.EventType != "" {
		ctx = logger.WithLogFields(ctx, logger.LogFields{EventType: &msg.EventType})
	}

	w.logger.DebugContext(ctx, "processing message", "attempt", msg.Attempt)

	event, err := w.deliverer.Deliver(ctx, msg.WebhookEventID)
	if err != nil {
		sc.RecordError(err)
		// not acked: requeued or sent to the DLQ by the caller
		return fmt.Errorf("delivering webhook event: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// the reclaimer will pick it up again; the event row guards against a resend
		w.logger.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	if event == nil {
		w.logger.DebugContext(ctx, "webhook event not claimable, skipped")
		return nil
	}
	w.logger.InfoContext(ctx, "webhook event processed",
		"status", event.Status,
		"retry_count", event.RetryCount)
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		w.logger.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"webhook_event_id", msg.WebhookEventID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			w.logger.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	w.logger.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"webhook_event_id", msg.WebhookEventID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		w.logger.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
