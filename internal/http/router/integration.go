package router

import (
	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/handler"
)

func IntegrationRouter(router *gin.RouterGroup, h *handler.IntegrationHandler) {
	router.GET("", h.Get)
	router.PUT("", h.Connect)
	router.DELETE("", h.Disconnect)
	router.POST("/validate", h.Validate)
}
