package webhook

import (
	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

// GitLabWebhookHandler receives Issue Hook and Note Hook deliveries
// authenticated by X-Gitlab-Token.
type GitLabWebhookHandler struct {
	inboundHandler
}

func NewGitLabWebhookHandler(inbound service.InboundService) *GitLabWebhookHandler {
	return &GitLabWebhookHandler{inboundHandler{
		inbound:    inbound,
		provider:   model.ProviderGitLab,
		authHeader: service.HeaderGitLabToken,
	}}
}

func (h *GitLabWebhookHandler) HandleEvent(c *gin.Context) {
	h.handle(c)
}
