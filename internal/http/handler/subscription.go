package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/apierror"
	"echo.app/relay/internal/http/dto"
	"echo.app/relay/internal/http/middleware"
	"echo.app/relay/internal/service"
	"echo.app/relay/internal/service/webhook"
)

type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

func (h *SubscriptionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	subs, err := h.subscriptions.List(ctx, middleware.GetOrganizationID(ctx))
	if err != nil {
		apierror.Write(c, err)
		return
	}

	out := make([]*dto.SubscriptionResponse, len(subs))
	for i := range subs {
		out[i] = dto.ToSubscriptionResponse(&subs[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sub, err := h.subscriptions.Create(ctx, service.CreateSubscriptionParams{
		OrganizationID: middleware.GetOrganizationID(ctx),
		URL:            req.URL,
		Secret:         req.Secret,
		Events:         req.Events,
		Enabled:        req.Enabled,
		MaxRetries:     req.MaxRetries,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateSubscriptionResponse{
		SubscriptionResponse: dto.ToSubscriptionResponse(sub),
		Secret:               sub.Secret,
	})
}

func (h *SubscriptionHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sub, err := h.subscriptions.Update(ctx, service.UpdateSubscriptionParams{
		OrganizationID: middleware.GetOrganizationID(ctx),
		ID:             id,
		URL:            req.URL,
		Secret:         req.Secret,
		Events:         req.Events,
		Enabled:        req.Enabled,
		MaxRetries:     req.MaxRetries,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSubscriptionResponse(sub))
}

func (h *SubscriptionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.subscriptions.Delete(ctx, middleware.GetOrganizationID(ctx), id); err != nil {
		apierror.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEvents returns recent delivery events; ?limit= caps the page (max 200).
func (h *SubscriptionHandler) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var limit int32
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			apierror.BadRequest(c, "invalid limit")
			return
		}
		limit = int32(n)
	}

	events, err := h.subscriptions.ListEvents(ctx, middleware.GetOrganizationID(ctx), id, limit)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToWebhookEventResponses(events))
}

// Replay queues a failed event for another round of deliveries.
func (h *SubscriptionHandler) Replay(c *gin.Context) {
	ctx := c.Request.Context()

	eventID, ok := pathID(c, "event_id")
	if !ok {
		return
	}

	event, err := h.subscriptions.Replay(ctx, middleware.GetOrganizationID(ctx), eventID)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ToWebhookEventResponse(event))
}

// Schema serves the JSON schema of the delivery envelope.
func (h *SubscriptionHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, webhook.EnvelopeSchema())
}
