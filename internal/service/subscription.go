package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"echo.app/relay/common/id"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/store"
)

var ErrSubscriptionNotFound = errors.New("webhook subscription not found")

const (
	maxSubscriptionRetries   int32 = 10
	defaultEventListLimit    int32 = 50
	maxEventListLimit        int32 = 200
	subscriptionSecretPrefix       = "whsec_"
)

// WebhookReplayer re-queues a delivered or failed event.
type WebhookReplayer interface {
	Replay(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error)
}

type CreateSubscriptionParams struct {
	OrganizationID int64
	URL            string
	Secret         *string
	Events         []string
	Enabled        *bool
	MaxRetries     *int32
}

// UpdateSubscriptionParams is a partial update: nil fields are left untouched.
type UpdateSubscriptionParams struct {
	OrganizationID int64
	ID             int64
	URL            *string
	Secret         *string
	Events         *[]string
	Enabled        *bool
	MaxRetries     *int32
}

type SubscriptionService interface {
	Create(ctx context.Context, params CreateSubscriptionParams) (*model.WebhookSubscription, error)
	Get(ctx context.Context, orgID, subscriptionID int64) (*model.WebhookSubscription, error)
	List(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error)
	Update(ctx context.Context, params UpdateSubscriptionParams) (*model.WebhookSubscription, error)
	Delete(ctx context.Context, orgID, subscriptionID int64) error
	ListEvents(ctx context.Context, orgID, subscriptionID int64, limit int32) ([]model.WebhookEvent, error)
	Replay(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error)
}

type subscriptionService struct {
	subscriptions store.WebhookSubscriptionStore
	events        store.WebhookEventStore
	replayer      WebhookReplayer
}

func NewSubscriptionService(
	subscriptions store.WebhookSubscriptionStore,
	events store.WebhookEventStore,
	replayer WebhookReplayer,
) SubscriptionService {
	return &subscriptionService{
		subscriptions: subscriptions,
		events:        events,
		replayer:      replayer,
	}
}

// Create registers a subscriber endpoint. A signing secret is generated when
// none is given; the caller sees it only in this response.
func (s *subscriptionService) Create(ctx context.Context, params CreateSubscriptionParams) (*model.WebhookSubscription, error) {
	sub := &model.WebhookSubscription{
		ID:             id.New(),
		OrganizationID: params.OrganizationID,
		URL:            strings.TrimSpace(params.URL),
		Events:         params.Events,
		Enabled:        true,
		MaxRetries:     model.DefaultWebhookMaxRetries,
	}
	if params.Enabled != nil {
		sub.Enabled = *params.Enabled
	}
	if params.MaxRetries != nil {
		sub.MaxRetries = *params.MaxRetries
	}

	if params.Secret != nil && *params.Secret != "" {
		sub.Secret = *params.Secret
	} else {
		secret, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generating webhook secret: %w", err)
		}
		sub.Secret = subscriptionSecretPrefix + secret
	}

	if err := validateSubscription(sub); err != nil {
		return nil, err
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating webhook subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) Get(ctx context.Context, orgID, subscriptionID int64) (*model.WebhookSubscription, error) {
	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("fetching webhook subscription: %w", err)
	}
	if sub.OrganizationID != orgID {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *subscriptionService) List(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error) {
	subs, err := s.subscriptions.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing webhook subscriptions: %w", err)
	}
	return subs, nil
}

func (s *subscriptionService) Update(ctx context.Context, params UpdateSubscriptionParams) (*model.WebhookSubscription, error) {
	sub, err := s.Get(ctx, params.OrganizationID, params.ID)
	if err != nil {
		return nil, err
	}

	if params.URL != nil {
		sub.URL = strings.TrimSpace(*params.URL)
	}
	if params.Secret != nil && *params.Secret != "" {
		sub.Secret = *params.Secret
	}
	if params.Events != nil {
		sub.Events = *params.Events
	}
	if params.Enabled != nil {
		sub.Enabled = *params.Enabled
	}
	if params.MaxRetries != nil {
		sub.MaxRetries = *params.MaxRetries
	}

	if err := validateSubscription(sub); err != nil {
		return nil, err
	}

	if err := s.subscriptions.Update(ctx, sub); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("updating webhook subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) Delete(ctx context.Context, orgID, subscriptionID int64) error {
	if err := s.subscriptions.Delete(ctx, subscriptionID, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("deleting webhook subscription: %w", err)
	}
	return nil
}

// ListEvents returns the subscription's most recent delivery events, newest first.
func (s *subscriptionService) ListEvents(ctx context.Context, orgID, subscriptionID int64, limit int32) ([]model.WebhookEvent, error) {
	if _, err := s.Get(ctx, orgID, subscriptionID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultEventListLimit
	}
	limit = min(limit, maxEventListLimit)

	events, err := s.events.ListBySubscription(ctx, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing webhook events: %w", err)
	}
	return events, nil
}

func (s *subscriptionService) Replay(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error) {
	return s.replayer.Replay(ctx, orgID, eventID)
}

func validateSubscription(sub *model.WebhookSubscription) error {
	u, err := url.Parse(sub.URL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}

	if len(sub.Events) == 0 {
		return fmt.Errorf("%w: at least one event type is required", ErrInvalidInput)
	}
	for _, event := range sub.Events {
		if event != model.EventWildcard && !slices.Contains(model.KnownEventTypes, event) {
			return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, event)
		}
	}

	if sub.MaxRetries < 1 || sub.MaxRetries > maxSubscriptionRetries {
		return fmt.Errorf("%w: max_retries must be between 1 and %d", ErrInvalidInput, maxSubscriptionRetries)
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
