package service

import (
	"log/slog"
	"time"

	"echo.app/relay/internal/mapper"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service/integration"
	"echo.app/relay/internal/service/issue_tracker"
	"echo.app/relay/internal/service/issuesync"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
)

type ServicesConfig struct {
	Stores   *store.Stores
	TxRunner TxRunner
	// Producer queues new webhook events; nil leaves them to the sweep.
	Producer            queue.Producer
	WebhookCfg          webhook.Config
	TrackerTimeout      time.Duration
	IntegrationCacheTTL time.Duration
	DashboardURL        string
	PublicURL           string
	Logger              *slog.Logger
}

type Services struct {
	stores       *store.Stores
	integrations store.IntegrationStore
	trackers     *issue_tracker.Registry
	mappers      *mapper.Registry
	webhooks     *webhook.Engine
	orchestrator *issuesync.Orchestrator
	mirror       *issuesync.CommentMirror
	cfg          ServicesConfig
}

func NewServices(cfg ServicesConfig) *Services {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IntegrationCacheTTL <= 0 {
		cfg.IntegrationCacheTTL = 30 * time.Second
	}

	integrations := store.NewCachedIntegrationStore(cfg.Stores.Integrations(), cfg.IntegrationCacheTTL)
	trackers := issue_tracker.NewDefaultRegistry(cfg.TrackerTimeout)

	webhooks := webhook.NewEngine(
		cfg.Stores.WebhookSubscriptions(),
		cfg.Stores.WebhookEvents(),
		NewWebhookTxRunner(cfg.TxRunner),
		cfg.Producer,
		cfg.WebhookCfg,
		cfg.Logger,
	)

	orchestrator := issuesync.NewOrchestrator(
		cfg.Stores.Feedback(),
		integrations,
		trackers,
		webhooks,
		issuesync.OrchestratorConfig{DashboardURL: cfg.DashboardURL},
		cfg.Logger,
	)

	mirror := issuesync.NewCommentMirror(
		cfg.Stores.Comments(),
		cfg.Stores.Feedback(),
		integrations,
		trackers,
		webhooks,
		cfg.Logger,
	)

	return &Services{
		stores:       cfg.Stores,
		integrations: integrations,
		trackers:     trackers,
		mappers:      mapper.NewDefaultRegistry(),
		webhooks:     webhooks,
		orchestrator: orchestrator,
		mirror:       mirror,
		cfg:          cfg,
	}
}

func (s *Services) Feedback() FeedbackService {
	return NewFeedbackService(s.stores.Feedback(), s.integrations, s.orchestrator, s.webhooks, s.cfg.Logger)
}

func (s *Services) Comments() CommentService {
	return NewCommentService(s.stores.Comments(), s.Feedback(), s.mirror, s.webhooks, s.cfg.Logger)
}

func (s *Services) Integrations() integration.Service {
	return integration.NewService(s.integrations, s.trackers, s.cfg.PublicURL, s.cfg.Logger)
}

func (s *Services) Subscriptions() SubscriptionService {
	return NewSubscriptionService(s.stores.WebhookSubscriptions(), s.stores.WebhookEvents(), s.webhooks)
}

func (s *Services) Inbound() InboundService {
	return NewInboundService(s.integrations, s.stores.Feedback(), s.mappers, s.orchestrator, s.mirror, s.cfg.Logger)
}

// Webhooks is the delivery engine shared by the API and the worker.
func (s *Services) Webhooks() *webhook.Engine {
	return s.webhooks
}
