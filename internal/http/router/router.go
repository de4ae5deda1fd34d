package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/handler"
	"echo.app/relay/internal/http/handler/webhook"
	"echo.app/relay/internal/http/middleware"
	"echo.app/relay/internal/service"
)

type RouterConfig struct {
	// PublicURL is where trackers reach /webhooks/{provider}/{integration_id}.
	PublicURL string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Tracker deliveries authenticate with the integration's webhook secret,
	// not the organization header.
	InboundWebhookRouter(router.Group("/webhooks"),
		webhook.NewGitHubWebhookHandler(services.Inbound()),
		webhook.NewGitLabWebhookHandler(services.Inbound()))

	v1 := router.Group("/api/v1", middleware.RequireOrganization())
	{
		FeedbackRouter(v1.Group("/feedback"),
			handler.NewFeedbackHandler(services.Feedback()),
			handler.NewCommentHandler(services.Comments()))

		IntegrationRouter(v1.Group("/integration"),
			handler.NewIntegrationHandler(services.Integrations(), cfg.PublicURL))

		SubscriptionRouter(v1.Group("/webhooks"),
			handler.NewSubscriptionHandler(services.Subscriptions()))
	}
}
