package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"echo.app/relay/common/logger"
	"echo.app/relay/internal/http/apierror"
	"echo.app/relay/internal/http/dto"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

// maxPayloadBytes matches GitHub's 25 MB delivery cap.
const maxPayloadBytes = 25 << 20

// inboundHandler holds what the GitHub and GitLab handlers share: reading the
// delivery and turning the service outcome into a response the tracker
// understands (2xx acknowledges, anything else is redelivered).
type inboundHandler struct {
	inbound  service.InboundService
	provider model.Provider
	// authHeader must be present before the body is read.
	authHeader string
}

func (h *inboundHandler) handle(c *gin.Context) {
	ctx := c.Request.Context()

	integrationID, err := strconv.ParseInt(c.Param("integration_id"), 10, 64)
	if err != nil {
		apierror.BadRequest(c, "invalid integration id")
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IntegrationID: &integrationID,
		Provider:      logger.Ptr(string(h.provider)),
		Component:     "echo.http.inbound_webhook",
	})

	if c.GetHeader(h.authHeader) == "" {
		apierror.Abort(c, http.StatusUnauthorized, apierror.CodeInvalidSignature, "missing "+h.authHeader+" header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		apierror.BadRequest(c, "failed to read request body")
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	result, err := h.inbound.Handle(ctx, service.InboundParams{
		Provider:      h.provider,
		IntegrationID: integrationID,
		Headers:       headers,
		Body:          body,
	})
	if err != nil {
		if !errors.Is(err, service.ErrInvalidSignature) && !errors.Is(err, service.ErrIntegrationNotFound) {
			slog.ErrorContext(ctx, "failed to process inbound webhook", "error", err)
		}
		apierror.Write(c, err)
		return
	}

	slog.InfoContext(ctx, "inbound webhook processed",
		"action", result.Action,
		"reason", result.Reason)
	c.JSON(http.StatusOK, dto.ToInboundWebhookResponse(result))
}
