package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/apierror"
	"echo.app/relay/internal/http/dto"
	"echo.app/relay/internal/http/middleware"
	"echo.app/relay/internal/service"
)

type CommentHandler struct {
	comments service.CommentService
}

func NewCommentHandler(comments service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

func (h *CommentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	feedbackID, ok := pathID(c, "id")
	if !ok {
		return
	}

	comments, err := h.comments.List(ctx, middleware.GetOrganizationID(ctx), feedbackID)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToCommentResponses(comments))
}

func (h *CommentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	feedbackID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid request: author_name and content are required")
		return
	}

	comment, err := h.comments.Create(ctx, service.CreateCommentParams{
		OrganizationID: middleware.GetOrganizationID(ctx),
		FeedbackID:     feedbackID,
		AuthorID:       req.AuthorID,
		AuthorName:     req.AuthorName,
		Content:        req.Content,
		IsInternal:     req.IsInternal,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToCommentResponse(comment))
}

// SyncPending pushes comments that have not reached the tracker yet.
func (h *CommentHandler) SyncPending(c *gin.Context) {
	ctx := c.Request.Context()

	feedbackID, ok := pathID(c, "id")
	if !ok {
		return
	}

	synced, err := h.comments.SyncPending(ctx, middleware.GetOrganizationID(ctx), feedbackID)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SyncCommentsResponse{Synced: synced})
}
