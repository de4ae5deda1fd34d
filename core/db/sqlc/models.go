package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Comment struct {
	ID                 int64              `json:"id"`
	FeedbackID         int64              `json:"feedback_id"`
	AuthorID           *int64             `json:"author_id"`
	AuthorName         string             `json:"author_name"`
	Content            string             `json:"content"`
	IsInternal         bool               `json:"is_internal"`
	ExternalCommentID  *string            `json:"external_comment_id"`
	ExternalCommentUrl *string            `json:"external_comment_url"`
	ExternalSyncedAt   pgtype.Timestamptz `json:"external_synced_at"`
	SyncedFromExternal bool               `json:"synced_from_external"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type Feedback struct {
	ID                  int64              `json:"id"`
	OrganizationID      int64              `json:"organization_id"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Type                string             `json:"type"`
	Priority            string             `json:"priority"`
	Status              string             `json:"status"`
	DeletedAt           pgtype.Timestamptz `json:"deleted_at"`
	ExternalIssueID     *string            `json:"external_issue_id"`
	ExternalIssueNumber *int64             `json:"external_issue_number"`
	ExternalIssueUrl    *string            `json:"external_issue_url"`
	ExternalSyncedAt    pgtype.Timestamptz `json:"external_synced_at"`
	ExternalStatus      *string            `json:"external_status"`
	SyncClaimToken      *string            `json:"sync_claim_token"`
	SyncClaimedAt       pgtype.Timestamptz `json:"sync_claimed_at"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type Integration struct {
	ID                int64              `json:"id"`
	OrganizationID    int64              `json:"organization_id"`
	Provider          string             `json:"provider"`
	ProviderBaseUrl   *string            `json:"provider_base_url"`
	AccessToken       string             `json:"access_token"`
	Repository        string             `json:"repository"`
	WebhookSecret     string             `json:"webhook_secret"`
	Enabled           bool               `json:"enabled"`
	AutoSync          bool               `json:"auto_sync"`
	SyncStatusChanges bool               `json:"sync_status_changes"`
	SyncComments      bool               `json:"sync_comments"`
	TriggerStatuses   []string           `json:"trigger_statuses"`
	LabelMapping      []byte             `json:"label_mapping"`
	StatusMapping     []byte             `json:"status_mapping"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type WebhookEvent struct {
	ID               int64              `json:"id"`
	SubscriptionID   int64              `json:"subscription_id"`
	OrganizationID   int64              `json:"organization_id"`
	EventType        string             `json:"event_type"`
	Payload          []byte             `json:"payload"`
	Status           string             `json:"status"`
	RetryCount       int32              `json:"retry_count"`
	MaxRetries       int32              `json:"max_retries"`
	NextRetryAt      pgtype.Timestamptz `json:"next_retry_at"`
	LastResponseCode *int32             `json:"last_response_code"`
	LastResponseBody *string            `json:"last_response_body"`
	LastError        *string            `json:"last_error"`
	DeliveredAt      pgtype.Timestamptz `json:"delivered_at"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

type WebhookSubscription struct {
	ID             int64              `json:"id"`
	OrganizationID int64              `json:"organization_id"`
	Url            string             `json:"url"`
	Secret         string             `json:"secret"`
	Enabled        bool               `json:"enabled"`
	Events         []string           `json:"events"`
	MaxRetries     int32              `json:"max_retries"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}
