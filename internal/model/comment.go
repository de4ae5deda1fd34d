package model

import "time"

type Comment struct {
	ID         int64  `json:"id"`
	FeedbackID int64  `json:"feedback_id"`
	AuthorID   *int64 `json:"author_id,omitempty"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`

	ExternalCommentID  *string    `json:"external_comment_id,omitempty"`
	ExternalCommentURL *string    `json:"external_comment_url,omitempty"`
	ExternalSyncedAt   *time.Time `json:"external_synced_at,omitempty"`
	SyncedFromExternal bool       `json:"synced_from_external"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsOutboundSync reports whether the comment is a local, public comment not yet mirrored.
func (c Comment) NeedsOutboundSync() bool {
	return c.ExternalCommentID == nil && !c.SyncedFromExternal && !c.IsInternal
}
