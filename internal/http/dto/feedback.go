package dto

import (
	"time"

	"echo.app/relay/internal/model"
)

type CreateFeedbackRequest struct {
	Title       string `json:"title" binding:"required,max=256"`
	Description string `json:"description" binding:"max=65536"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
}

type UpdateFeedbackStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ExternalIssueResponse struct {
	ID       *string    `json:"id,omitempty"`
	Number   int64      `json:"number"`
	URL      *string    `json:"url,omitempty"`
	Status   *string    `json:"status,omitempty"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

type FeedbackResponse struct {
	ID             int64                  `json:"id,string"`
	OrganizationID int64                  `json:"organization_id,string"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Type           string                 `json:"type"`
	Priority       string                 `json:"priority"`
	Status         string                 `json:"status"`
	ExternalIssue  *ExternalIssueResponse `json:"external_issue,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func ToFeedbackResponse(f *model.Feedback) *FeedbackResponse {
	resp := &FeedbackResponse{
		ID:             f.ID,
		OrganizationID: f.OrganizationID,
		Title:          f.Title,
		Description:    f.Description,
		Type:           string(f.Type),
		Priority:       string(f.Priority),
		Status:         string(f.Status),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.IsLinked() {
		issue := &ExternalIssueResponse{
			ID:       f.ExternalIssueID,
			Number:   *f.ExternalIssueNumber,
			URL:      f.ExternalIssueURL,
			SyncedAt: f.ExternalSyncedAt,
		}
		if f.ExternalStatus != nil {
			status := string(*f.ExternalStatus)
			issue.Status = &status
		}
		resp.ExternalIssue = issue
	}
	return resp
}

type CreateFeedbackResponse struct {
	*FeedbackResponse
	// SyncError is set when the feedback was saved but creating its issue failed.
	SyncError *string `json:"sync_error,omitempty"`
}

type PullFeedbackResponse struct {
	Feedback *FeedbackResponse `json:"feedback"`
	Changed  bool              `json:"changed"`
}
