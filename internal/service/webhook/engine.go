package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/store"
)

const (
	DefaultBatchSize int32 = 10
	defaultTimeout         = 10 * time.Second
	userAgent              = "Echo-Webhooks/1.0"
)

// ErrEventNotReplayable is returned by Replay for events that are missing,
// belong to another organization, or are not failed.
var ErrEventNotReplayable = errors.New("webhook event is not replayable")

var errStaleSending = errors.New("delivery abandoned: event stuck in sending")

type Config struct {
	Timeout   time.Duration
	BatchSize int32
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Found       int `json:"found"`
	Delivered   int `json:"delivered"`
	Rescheduled int `json:"rescheduled"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Errors      int `json:"errors"`
}

// StoreProvider mirrors service.StoreProvider, defined here to avoid import cycles.
type StoreProvider interface {
	WebhookEvents() store.WebhookEventStore
}

// TxRunner mirrors service.TxRunner.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeDelivered
	outcomeRescheduled
	outcomeFailed
)

// Engine fans events out to subscribers and delivers them with retries.
type Engine struct {
	subscriptions store.WebhookSubscriptionStore
	events        store.WebhookEventStore
	txRunner      TxRunner
	producer      queue.Producer
	http          *resty.Client
	cfg           Config
	logger        *slog.Logger
	now           func() time.Time

	// inflight holds event ids being delivered by this process.
	mu       sync.Mutex
	inflight map[int64]struct{}
}

// NewEngine builds the engine. producer may be nil, in which case new events
// wait for the sweep.
func NewEngine(
	subscriptions store.WebhookSubscriptionStore,
	events store.WebhookEventStore,
	txRunner TxRunner,
	producer queue.Producer,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent).
		SetLogger(restyLogger{log})

	return &Engine{
		subscriptions: subscriptions,
		events:        events,
		txRunner:      txRunner,
		producer:      producer,
		http:          client,
		cfg:           cfg,
		logger:        log,
		now:           time.Now,
		inflight:      make(map[int64]struct{}),
	}
}

// Emit records one pending event per enabled subscription of the organization
// listening to eventType and queues each for immediate delivery. Queue
// failures are logged; the sweep picks those events up.
func (e *Engine) Emit(ctx context.Context, orgID int64, eventType string, data any) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &orgID,
		EventType:      &eventType,
		Component:      "echo.webhook.engine",
	})

	subs, err := e.subscriptions.ListActiveForEvent(ctx, orgID, eventType)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding event data: %w", err)
	}

	now := e.now().UTC()
	created := make([]*model.WebhookEvent, 0, len(subs))
	for _, sub := range subs {
		eventID := id.New()
		payload, err := json.Marshal(model.Envelope{
			ID:             eventID,
			Type:           eventType,
			OrganizationID: orgID,
			CreatedAt:      now,
			Data:           raw,
		})
		if err != nil {
			return fmt.Errorf("encoding envelope: %w", err)
		}

		maxRetries := sub.MaxRetries
		if maxRetries <= 0 {
			maxRetries = model.DefaultWebhookMaxRetries
		}

		created = append(created, &model.WebhookEvent{
			ID:             eventID,
			SubscriptionID: sub.ID,
			OrganizationID: orgID,
			EventType:      eventType,
			Payload:        payload,
			Status:         model.WebhookEventStatusPending,
			MaxRetries:     maxRetries,
			NextRetryAt:    &now,
		})
	}

	// all subscribers get the event or none do
	if err := e.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		for _, event := range created {
			if err := stores.WebhookEvents().Create(ctx, event); err != nil {
				return fmt.Errorf("creating webhook event: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for _, event := range created {
		e.enqueue(ctx, event)
	}

	e.logger.InfoContext(ctx, "webhook event emitted", "subscriptions", len(subs))
	return nil
}

func (e *Engine) enqueue(ctx context.Context, event *model.WebhookEvent) {
	if e.producer == nil {
		return
	}
	if err := e.producer.Enqueue(ctx, queue.DeliveryMessage{
		WebhookEventID: event.ID,
		OrganizationID: event.OrganizationID,
		EventType:      event.EventType,
		Attempt:        1,
	}); err != nil {
		e.logger.WarnContext(ctx, "enqueueing webhook event failed, left for sweep",
			"webhook_event_id", event.ID, "error", err)
	}
}

// Deliver makes one delivery attempt for a pending event. It returns the
// event's new state, or nil when the event was not claimable (already taken,
// not pending, or in flight in this process). Delivery failures become state
// transitions; only store errors are returned.
func (e *Engine) Deliver(ctx context.Context, eventID int64) (*model.WebhookEvent, error) {
	_, event, err := e.deliver(ctx, eventID)
	return event, err
}

func (e *Engine) deliver(ctx context.Context, eventID int64) (outcome, *model.WebhookEvent, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WebhookEventID: &eventID,
		Component:      "echo.webhook.engine",
	})

	if !e.acquire(eventID) {
		e.logger.DebugContext(ctx, "webhook event already in flight, skipping")
		return outcomeSkipped, nil, nil
	}
	defer e.release(eventID)

	event, err := e.events.Claim(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return outcomeSkipped, nil, nil
		}
		return outcomeSkipped, nil, fmt.Errorf("claiming webhook event: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SubscriptionID: &event.SubscriptionID,
		OrganizationID: &event.OrganizationID,
		EventType:      &event.EventType,
	})

	sub, err := e.subscriptions.GetByID(ctx, event.SubscriptionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		// leave it in sending; ReclaimStale turns it back into a retry
		return outcomeSkipped, nil, fmt.Errorf("fetching subscription: %w", err)
	}
	if sub == nil || !sub.Enabled {
		failed, err := e.events.Fail(ctx, event.ID, "subscription disabled or deleted")
		if err != nil {
			return outcomeSkipped, nil, fmt.Errorf("failing webhook event: %w", err)
		}
		e.logger.InfoContext(ctx, "webhook event failed: subscription gone or disabled")
		return outcomeFailed, failed, nil
	}

	attempt := e.send(ctx, sub, event)
	if attempt.OK() {
		delivered, err := e.events.MarkDelivered(ctx, event.ID, int32(attempt.StatusCode), TruncateBody(attempt.Body))
		if err != nil {
			return outcomeSkipped, nil, fmt.Errorf("marking webhook event delivered: %w", err)
		}
		e.logger.InfoContext(ctx, "webhook delivered",
			"status_code", attempt.StatusCode,
			"retry_count", event.RetryCount)
		return outcomeDelivered, delivered, nil
	}

	updated, err := e.recordFailure(ctx, event, attempt)
	if err != nil {
		return outcomeSkipped, nil, err
	}
	if updated.Status == model.WebhookEventStatusFailed {
		return outcomeFailed, updated, nil
	}
	return outcomeRescheduled, updated, nil
}

func (e *Engine) send(ctx context.Context, sub *model.WebhookSubscription, event *model.WebhookEvent) model.WebhookAttempt {
	body := []byte(event.Payload)
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			HeaderID:        strconv.FormatInt(event.ID, 10),
			HeaderEvent:     event.EventType,
			HeaderSignature: Sign(sub.Secret, body),
			HeaderTimestamp: strconv.FormatInt(e.now().Unix(), 10),
			HeaderDelivery:  uuid.NewString(),
		}).
		SetBody(body).
		Post(sub.URL)

	attempt := model.WebhookAttempt{Err: err}
	if resp != nil {
		attempt.StatusCode = resp.StatusCode()
		attempt.Body = resp.String()
	}
	return attempt
}

// recordFailure is the single place a failed attempt is accounted for: the
// retry count goes up by one and the event is either rescheduled on the
// backoff schedule or, once max retries is reached, failed for good.
func (e *Engine) recordFailure(ctx context.Context, event *model.WebhookEvent, attempt model.WebhookAttempt) (*model.WebhookEvent, error) {
	retryCount := event.RetryCount + 1
	failure := store.WebhookFailure{
		ID:         event.ID,
		RetryCount: retryCount,
	}

	if retryCount >= event.MaxRetries {
		failure.Status = model.WebhookEventStatusFailed
	} else {
		next := e.now().Add(Backoff(event.RetryCount))
		failure.Status = model.WebhookEventStatusPending
		failure.NextRetryAt = &next
	}

	if attempt.StatusCode > 0 {
		code := int32(attempt.StatusCode)
		failure.ResponseCode = &code
	}
	if attempt.Body != "" {
		body := TruncateBody(attempt.Body)
		failure.ResponseBody = &body
	}
	var reason string
	if attempt.Err != nil {
		reason = attempt.Err.Error()
	} else {
		reason = fmt.Sprintf("unexpected status %d", attempt.StatusCode)
	}
	failure.Error = &reason

	updated, err := e.events.RecordFailure(ctx, failure)
	if err != nil {
		return nil, fmt.Errorf("recording webhook failure: %w", err)
	}

	if updated.Status == model.WebhookEventStatusFailed {
		e.logger.WarnContext(ctx, "webhook delivery failed permanently",
			"retry_count", updated.RetryCount,
			"status_code", attempt.StatusCode,
			"error", reason)
	} else {
		e.logger.InfoContext(ctx, "webhook delivery failed, retry scheduled",
			"retry_count", updated.RetryCount,
			"next_retry_at", failure.NextRetryAt,
			"status_code", attempt.StatusCode,
			"error", reason)
	}
	return updated, nil
}

// ProcessFailedWebhooks delivers up to BatchSize due events. Events another
// process claimed first, or that this process is already delivering, are
// skipped.
func (e *Engine) ProcessFailedWebhooks(ctx context.Context) (SweepResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "echo.webhook.sweep"})

	due, err := e.events.ListDue(ctx, e.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing due webhook events: %w", err)
	}

	result := SweepResult{Found: len(due)}
	for _, event := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		out, _, err := e.deliver(ctx, event.ID)
		if err != nil {
			result.Errors++
			e.logger.ErrorContext(ctx, "webhook retry failed", "webhook_event_id", event.ID, "error", err)
			continue
		}
		switch out {
		case outcomeDelivered:
			result.Delivered++
		case outcomeRescheduled:
			result.Rescheduled++
		case outcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	if result.Found > 0 {
		e.logger.InfoContext(ctx, "webhook sweep finished",
			"found", result.Found,
			"delivered", result.Delivered,
			"rescheduled", result.Rescheduled,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"errors", result.Errors)
	}
	return result, nil
}

// ReclaimStale treats events stuck in sending for longer than olderThan as a
// failed attempt. It returns how many were reclaimed.
func (e *Engine) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "echo.webhook.sweep"})

	stale, err := e.events.ListStaleSending(ctx, e.now().Add(-olderThan), e.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale webhook events: %w", err)
	}

	reclaimed := 0
	for i := range stale {
		event := &stale[i]
		if !e.acquire(event.ID) {
			continue
		}
		_, err := e.recordFailure(ctx, event, model.WebhookAttempt{Err: errStaleSending})
		e.release(event.ID)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return reclaimed, err
		}
		reclaimed++
	}

	if reclaimed > 0 {
		e.logger.WarnContext(ctx, "reclaimed stale webhook events", "count", reclaimed)
	}
	return reclaimed, nil
}

// Replay resets a failed event of the organization to pending with a fresh
// retry budget and queues it.
func (e *Engine) Replay(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &orgID,
		WebhookEventID: &eventID,
		Component:      "echo.webhook.engine",
	})

	event, err := e.events.ResetForReplay(ctx, eventID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return nil, ErrEventNotReplayable
		}
		return nil, fmt.Errorf("resetting webhook event: %w", err)
	}

	e.enqueue(ctx, event)
	e.logger.InfoContext(ctx, "webhook event queued for replay")
	return event, nil
}

func (e *Engine) acquire(eventID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[eventID]; busy {
		return false
	}
	e.inflight[eventID] = struct{}{}
	return true
}

func (e *Engine) release(eventID int64) {
	e.mu.Lock()
	delete(e.inflight, eventID)
	e.mu.Unlock()
}

// restyLogger routes resty's internal messages through slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "echo.webhook.http")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "echo.webhook.http")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "echo.webhook.http")
}
