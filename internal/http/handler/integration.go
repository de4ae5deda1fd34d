package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/apierror"
	"echo.app/relay/internal/http/dto"
	"echo.app/relay/internal/http/middleware"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/integration"
)

type IntegrationHandler struct {
	integrations integration.Service
	publicURL    string
}

// NewIntegrationHandler builds the handler. publicURL is where trackers reach
// the inbound webhook routes; it may be empty.
func NewIntegrationHandler(integrations integration.Service, publicURL string) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, publicURL: publicURL}
}

func (h *IntegrationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	i, err := h.integrations.Get(ctx, middleware.GetOrganizationID(ctx))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToIntegrationResponse(i, h.inboundURL(i)))
}

// Connect creates or updates the organization's integration after checking
// the credentials against the tracker.
func (h *IntegrationHandler) Connect(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ConnectIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	params := integration.ConnectParams{
		OrganizationID:    middleware.GetOrganizationID(ctx),
		Provider:          model.Provider(req.Provider),
		ProviderBaseURL:   req.ProviderBaseURL,
		AccessToken:       req.AccessToken,
		Repository:        req.Repository,
		Enabled:           req.Enabled,
		AutoSync:          req.AutoSync,
		SyncStatusChanges: req.SyncStatusChanges,
		SyncComments:      req.SyncComments,
		LabelMapping:      req.LabelMapping,
	}
	if req.TriggerStatuses != nil {
		params.TriggerStatuses = make([]model.FeedbackStatus, len(req.TriggerStatuses))
		for n, s := range req.TriggerStatuses {
			params.TriggerStatuses[n] = model.FeedbackStatus(s)
		}
	}
	if req.StatusMapping != nil {
		params.StatusMapping = model.StatusMapping(req.StatusMapping)
	}

	result, err := h.integrations.Connect(ctx, params)
	if err != nil {
		apierror.Write(c, err)
		return
	}

	resp := dto.ConnectIntegrationResponse{
		Integration: dto.ToIntegrationResponse(result.Integration, h.inboundURL(result.Integration)),
		Created:     result.Created,
		Repository:  dto.ToRepositoryResponse(result.Repository),
		HookID:      result.HookID,
		HookError:   result.HookError,
	}
	if result.HookError != "" {
		resp.WebhookSecret = result.Integration.WebhookSecret
		slog.WarnContext(ctx, "integration saved without inbound hook", "hook_error", result.HookError)
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.integrations.Disconnect(ctx, middleware.GetOrganizationID(ctx)); err != nil {
		apierror.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Validate checks credentials without saving them.
func (h *IntegrationHandler) Validate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ValidateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.integrations.Validate(ctx, integration.ValidateParams{
		Provider:        model.Provider(req.Provider),
		ProviderBaseURL: req.ProviderBaseURL,
		AccessToken:     req.AccessToken,
		Repository:      req.Repository,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ValidateIntegrationResponse{
		Valid:      result.Valid,
		Repository: dto.ToRepositoryResponse(result.Repository),
	})
}

func (h *IntegrationHandler) inboundURL(i *model.Integration) string {
	if h.publicURL == "" {
		return ""
	}
	return integration.InboundURL(h.publicURL, i)
}
