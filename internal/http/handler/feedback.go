package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/apierror"
	"echo.app/relay/internal/http/dto"
	"echo.app/relay/internal/http/middleware"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

type FeedbackHandler struct {
	feedback service.FeedbackService
}

func NewFeedbackHandler(feedback service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Create stores the feedback. When auto-sync fails the feedback is still
// created and the tracker error is reported in sync_error.
func (h *FeedbackHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.feedback.Create(ctx, service.CreateFeedbackParams{
		OrganizationID: middleware.GetOrganizationID(ctx),
		Title:          req.Title,
		Description:    req.Description,
		Type:           model.FeedbackType(req.Type),
		Priority:       model.FeedbackPriority(req.Priority),
		Status:         model.FeedbackStatus(req.Status),
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}

	resp := dto.CreateFeedbackResponse{FeedbackResponse: dto.ToFeedbackResponse(result.Feedback)}
	if result.SyncError != nil {
		msg := result.SyncError.Error()
		resp.SyncError = &msg
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *FeedbackHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	fb, err := h.feedback.Get(ctx, middleware.GetOrganizationID(ctx), id)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToFeedbackResponse(fb))
}

func (h *FeedbackHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateFeedbackStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: status is required")
		return
	}

	fb, err := h.feedback.UpdateStatus(ctx, middleware.GetOrganizationID(ctx), id, model.FeedbackStatus(req.Status))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToFeedbackResponse(fb))
}

// Sync creates the external issue now. Tracker failures surface as 502.
func (h *FeedbackHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	fb, err := h.feedback.Sync(ctx, middleware.GetOrganizationID(ctx), id)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToFeedbackResponse(fb))
}

func (h *FeedbackHandler) Pull(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	fb, changed, err := h.feedback.Pull(ctx, middleware.GetOrganizationID(ctx), id)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PullFeedbackResponse{Feedback: dto.ToFeedbackResponse(fb), Changed: changed})
}
