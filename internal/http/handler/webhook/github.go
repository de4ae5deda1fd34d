package webhook

import (
	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

// GitHubWebhookHandler receives issue and issue comment deliveries signed
// with X-Hub-Signature-256.
type GitHubWebhookHandler struct {
	inboundHandler
}

func NewGitHubWebhookHandler(inbound service.InboundService) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{inboundHandler{
		inbound:    inbound,
		provider:   model.ProviderGitHub,
		authHeader: service.HeaderGitHubSignature,
	}}
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	h.handle(c)
}
