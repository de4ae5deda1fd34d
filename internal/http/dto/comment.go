package dto

import (
	"time"

	"echo.app/relay/internal/model"
)

type CreateCommentRequest struct {
	AuthorID   *int64 `json:"author_id,omitempty"`
	AuthorName string `json:"author_name" binding:"required,max=255"`
	Content    string `json:"content" binding:"required,max=65536"`
	IsInternal bool   `json:"is_internal"`
}

type CommentResponse struct {
	ID                 int64      `json:"id,string"`
	FeedbackID         int64      `json:"feedback_id,string"`
	AuthorID           *int64     `json:"author_id,omitempty"`
	AuthorName         string     `json:"author_name"`
	Content            string     `json:"content"`
	IsInternal         bool       `json:"is_internal"`
	ExternalCommentID  *string    `json:"external_comment_id,omitempty"`
	ExternalCommentURL *string    `json:"external_comment_url,omitempty"`
	ExternalSyncedAt   *time.Time `json:"external_synced_at,omitempty"`
	SyncedFromExternal bool       `json:"synced_from_external"`
	CreatedAt          time.Time  `json:"created_at"`
}

func ToCommentResponse(c *model.Comment) *CommentResponse {
	return &CommentResponse{
		ID:                 c.ID,
		FeedbackID:         c.FeedbackID,
		AuthorID:           c.AuthorID,
		AuthorName:         c.AuthorName,
		Content:            c.Content,
		IsInternal:         c.IsInternal,
		ExternalCommentID:  c.ExternalCommentID,
		ExternalCommentURL: c.ExternalCommentURL,
		ExternalSyncedAt:   c.ExternalSyncedAt,
		SyncedFromExternal: c.SyncedFromExternal,
		CreatedAt:          c.CreatedAt,
	}
}

func ToCommentResponses(comments []model.Comment) []*CommentResponse {
	out := make([]*CommentResponse, len(comments))
	for i := range comments {
		out[i] = ToCommentResponse(&comments[i])
	}
	return out
}

type SyncCommentsResponse struct {
	Synced int `json:"synced"`
}
