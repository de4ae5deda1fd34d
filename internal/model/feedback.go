package model

import "time"

type (
	FeedbackStatus   string
	FeedbackType     string
	FeedbackPriority string
	ExternalStatus   string
)

const (
	FeedbackStatusNew        FeedbackStatus = "new"
	FeedbackStatusInProgress FeedbackStatus = "in-progress"
	FeedbackStatusPlanned    FeedbackStatus = "planned"
	FeedbackStatusCompleted  FeedbackStatus = "completed"
	FeedbackStatusClosed     FeedbackStatus = "closed"
)

const (
	FeedbackTypeBug         FeedbackType = "bug"
	FeedbackTypeFeature     FeedbackType = "feature"
	FeedbackTypeImprovement FeedbackType = "improvement"
	FeedbackTypeQuestion    FeedbackType = "question"
	FeedbackTypeOther       FeedbackType = "other"
)

const (
	FeedbackPriorityLow    FeedbackPriority = "low"
	FeedbackPriorityMedium FeedbackPriority = "medium"
	FeedbackPriorityHigh   FeedbackPriority = "high"
	FeedbackPriorityUrgent FeedbackPriority = "urgent"
)

const (
	ExternalStatusOpen   ExternalStatus = "open"
	ExternalStatusClosed ExternalStatus = "closed"
)

func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackStatusNew, FeedbackStatusInProgress, FeedbackStatusPlanned,
		FeedbackStatusCompleted, FeedbackStatusClosed:
		return true
	}
	return false
}

func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackTypeBug, FeedbackTypeFeature, FeedbackTypeImprovement,
		FeedbackTypeQuestion, FeedbackTypeOther:
		return true
	}
	return false
}

func (p FeedbackPriority) Valid() bool {
	switch p {
	case FeedbackPriorityLow, FeedbackPriorityMedium, FeedbackPriorityHigh, FeedbackPriorityUrgent:
		return true
	}
	return false
}

type Feedback struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Type           FeedbackType     `json:"type"`
	Priority       FeedbackPriority `json:"priority"`
	Status         FeedbackStatus   `json:"status"`

	ExternalIssueID     *string         `json:"external_issue_id,omitempty"`
	ExternalIssueNumber *int64          `json:"external_issue_number,omitempty"`
	ExternalIssueURL    *string         `json:"external_issue_url,omitempty"`
	ExternalSyncedAt    *time.Time      `json:"external_synced_at,omitempty"`
	ExternalStatus      *ExternalStatus `json:"external_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLinked reports whether the feedback has been mirrored to an external issue.
func (f Feedback) IsLinked() bool {
	return f.ExternalIssueNumber != nil
}

// CurrentExternalStatus returns the persisted external state, or "" when unknown.
func (f Feedback) CurrentExternalStatus() ExternalStatus {
	if f.ExternalStatus == nil {
		return ""
	}
	return *f.ExternalStatus
}
