package router

import (
	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/handler"
	"echo.app/relay/internal/http/handler/webhook"
)

func SubscriptionRouter(router *gin.RouterGroup, h *handler.SubscriptionHandler) {
	router.GET("", h.List)
	router.POST("", h.Create)
	router.GET("/schema", h.Schema)
	router.PATCH("/:id", h.Update)
	router.DELETE("/:id", h.Delete)
	router.GET("/:id/events", h.ListEvents)
	router.POST("/events/:event_id/replay", h.Replay)
}

func InboundWebhookRouter(router *gin.RouterGroup, github *webhook.GitHubWebhookHandler, gitlab *webhook.GitLabWebhookHandler) {
	router.POST("/github/:integration_id", github.HandleEvent)
	router.POST("/gitlab/:integration_id", gitlab.HandleEvent)
}
