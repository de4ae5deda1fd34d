// source: feedback.sql

package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const feedbackColumns = `id, organization_id, title, description, type, priority, status, deleted_at, external_issue_id, external_issue_number, external_issue_url, external_synced_at, external_status, sync_claim_token, sync_claimed_at, created_at, updated_at`

func scanFeedback(row interface{ Scan(...any) error }) (Feedback, error) {
	var i Feedback
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.Title,
		&i.Description,
		&i.Type,
		&i.Priority,
		&i.Status,
		&i.DeletedAt,
		&i.ExternalIssueID,
		&i.ExternalIssueNumber,
		&i.ExternalIssueUrl,
		&i.ExternalSyncedAt,
		&i.ExternalStatus,
		&i.SyncClaimToken,
		&i.SyncClaimedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const applyFeedbackExternalState = `-- name: ApplyFeedbackExternalState :one
UPDATE feedback
SET status = $2, external_status = $3, external_synced_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + feedbackColumns

type ApplyFeedbackExternalStateParams struct {
	ID             int64   `json:"id"`
	Status         string  `json:"status"`
	ExternalStatus *string `json:"external_status"`
}

func (q *Queries) ApplyFeedbackExternalState(ctx context.Context, arg ApplyFeedbackExternalStateParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, applyFeedbackExternalState, arg.ID, arg.Status, arg.ExternalStatus)
	return scanFeedback(row)
}

const claimFeedbackSync = `-- name: ClaimFeedbackSync :one
UPDATE feedback
SET sync_claim_token = $2, sync_claimed_at = now()
WHERE id = $1
  AND deleted_at IS NULL
  AND external_issue_id IS NULL
  AND (sync_claim_token IS NULL OR sync_claimed_at < $3)
RETURNING ` + feedbackColumns

type ClaimFeedbackSyncParams struct {
	ID             int64              `json:"id"`
	SyncClaimToken *string            `json:"sync_claim_token"`
	SyncClaimedAt  pgtype.Timestamptz `json:"sync_claimed_at"`
}

func (q *Queries) ClaimFeedbackSync(ctx context.Context, arg ClaimFeedbackSyncParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, claimFeedbackSync, arg.ID, arg.SyncClaimToken, arg.SyncClaimedAt)
	return scanFeedback(row)
}

const createFeedback = `-- name: CreateFeedback :one
INSERT INTO feedback (id, organization_id, title, description, type, priority, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + feedbackColumns

type CreateFeedbackParams struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Status         string `json:"status"`
}

func (q *Queries) CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, createFeedback,
		arg.ID,
		arg.OrganizationID,
		arg.Title,
		arg.Description,
		arg.Type,
		arg.Priority,
		arg.Status,
	)
	return scanFeedback(row)
}

const getFeedback = `-- name: GetFeedback :one
SELECT ` + feedbackColumns + ` FROM feedback
WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) GetFeedback(ctx context.Context, id int64) (Feedback, error) {
	row := q.db.QueryRow(ctx, getFeedback, id)
	return scanFeedback(row)
}

const getFeedbackByExternalIssueNumber = `-- name: GetFeedbackByExternalIssueNumber :one
SELECT ` + feedbackColumns + ` FROM feedback
WHERE organization_id = $1 AND external_issue_number = $2 AND deleted_at IS NULL`

type GetFeedbackByExternalIssueNumberParams struct {
	OrganizationID      int64  `json:"organization_id"`
	ExternalIssueNumber *int64 `json:"external_issue_number"`
}

func (q *Queries) GetFeedbackByExternalIssueNumber(ctx context.Context, arg GetFeedbackByExternalIssueNumberParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, getFeedbackByExternalIssueNumber, arg.OrganizationID, arg.ExternalIssueNumber)
	return scanFeedback(row)
}

const linkFeedbackExternalIssue = `-- name: LinkFeedbackExternalIssue :one
UPDATE feedback
SET external_issue_id = $3,
    external_issue_number = $4,
    external_issue_url = $5,
    external_status = $6,
    external_synced_at = now(),
    sync_claim_token = NULL,
    sync_claimed_at = NULL,
    updated_at = now()
WHERE id = $1 AND sync_claim_token = $2 AND external_issue_id IS NULL
RETURNING ` + feedbackColumns

type LinkFeedbackExternalIssueParams struct {
	ID                  int64   `json:"id"`
	SyncClaimToken      *string `json:"sync_claim_token"`
	ExternalIssueID     *string `json:"external_issue_id"`
	ExternalIssueNumber *int64  `json:"external_issue_number"`
	ExternalIssueUrl    *string `json:"external_issue_url"`
	ExternalStatus      *string `json:"external_status"`
}

func (q *Queries) LinkFeedbackExternalIssue(ctx context.Context, arg LinkFeedbackExternalIssueParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, linkFeedbackExternalIssue,
		arg.ID,
		arg.SyncClaimToken,
		arg.ExternalIssueID,
		arg.ExternalIssueNumber,
		arg.ExternalIssueUrl,
		arg.ExternalStatus,
	)
	return scanFeedback(row)
}

const releaseFeedbackSyncClaim = `-- name: ReleaseFeedbackSyncClaim :exec
UPDATE feedback
SET sync_claim_token = NULL, sync_claimed_at = NULL
WHERE id = $1 AND sync_claim_token = $2`

type ReleaseFeedbackSyncClaimParams struct {
	ID             int64   `json:"id"`
	SyncClaimToken *string `json:"sync_claim_token"`
}

func (q *Queries) ReleaseFeedbackSyncClaim(ctx context.Context, arg ReleaseFeedbackSyncClaimParams) error {
	_, err := q.db.Exec(ctx, releaseFeedbackSyncClaim, arg.ID, arg.SyncClaimToken)
	return err
}

const updateFeedbackExternalStatus = `-- name: UpdateFeedbackExternalStatus :one
UPDATE feedback
SET external_status = $2, external_synced_at = now(), updated_at = now()
WHERE id = $1 AND external_issue_id IS NOT NULL
RETURNING ` + feedbackColumns

type UpdateFeedbackExternalStatusParams struct {
	ID             int64   `json:"id"`
	ExternalStatus *string `json:"external_status"`
}

func (q *Queries) UpdateFeedbackExternalStatus(ctx context.Context, arg UpdateFeedbackExternalStatusParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, updateFeedbackExternalStatus, arg.ID, arg.ExternalStatus)
	return scanFeedback(row)
}

const updateFeedbackStatus = `-- name: UpdateFeedbackStatus :one
UPDATE feedback
SET status = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + feedbackColumns

type UpdateFeedbackStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateFeedbackStatus(ctx context.Context, arg UpdateFeedbackStatusParams) (Feedback, error) {
	row := q.db.QueryRow(ctx, updateFeedbackStatus, arg.ID, arg.Status)
	return scanFeedback(row)
}
