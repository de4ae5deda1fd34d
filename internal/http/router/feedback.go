package router

import (
	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/handler"
)

func FeedbackRouter(router *gin.RouterGroup, feedback *handler.FeedbackHandler, comments *handler.CommentHandler) {
	router.POST("", feedback.Create)
	router.GET("/:id", feedback.Get)
	router.PATCH("/:id/status", feedback.UpdateStatus)
	router.POST("/:id/sync", feedback.Sync)
	router.POST("/:id/sync/pull", feedback.Pull)

	router.GET("/:id/comments", comments.List)
	router.POST("/:id/comments", comments.Create)
	router.POST("/:id/comments/sync", comments.SyncPending)
}
