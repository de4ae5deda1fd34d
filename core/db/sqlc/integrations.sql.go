// source: integrations.sql

package sqlc

import (
	"context"
)

const integrationColumns = `id, organization_id, provider, provider_base_url, access_token, repository, webhook_secret, enabled, auto_sync, sync_status_changes, sync_comments, trigger_statuses, label_mapping, status_mapping, created_at, updated_at`

func scanIntegration(row interface{ Scan(...any) error }) (Integration, error) {
	var i Integration
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.Provider,
		&i.ProviderBaseUrl,
		&i.AccessToken,
		&i.Repository,
		&i.WebhookSecret,
		&i.Enabled,
		&i.AutoSync,
		&i.SyncStatusChanges,
		&i.SyncComments,
		&i.TriggerStatuses,
		&i.LabelMapping,
		&i.StatusMapping,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteIntegrationByOrganization = `-- name: DeleteIntegrationByOrganization :exec
DELETE FROM integrations WHERE organization_id = $1`

func (q *Queries) DeleteIntegrationByOrganization(ctx context.Context, organizationID int64) error {
	_, err := q.db.Exec(ctx, deleteIntegrationByOrganization, organizationID)
	return err
}

const getIntegration = `-- name: GetIntegration :one
SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`

func (q *Queries) GetIntegration(ctx context.Context, id int64) (Integration, error) {
	row := q.db.QueryRow(ctx, getIntegration, id)
	return scanIntegration(row)
}

const getIntegrationByOrganization = `-- name: GetIntegrationByOrganization :one
SELECT ` + integrationColumns + ` FROM integrations WHERE organization_id = $1`

func (q *Queries) GetIntegrationByOrganization(ctx context.Context, organizationID int64) (Integration, error) {
	row := q.db.QueryRow(ctx, getIntegrationByOrganization, organizationID)
	return scanIntegration(row)
}

const upsertIntegration = `-- name: UpsertIntegration :one
INSERT INTO integrations (
    id, organization_id, provider, provider_base_url, access_token, repository, webhook_secret,
    enabled, auto_sync, sync_status_changes, sync_comments, trigger_statuses, label_mapping, status_mapping
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (organization_id) DO UPDATE SET
    provider = EXCLUDED.provider,
    provider_base_url = EXCLUDED.provider_base_url,
    access_token = EXCLUDED.access_token,
    repository = EXCLUDED.repository,
    webhook_secret = EXCLUDED.webhook_secret,
    enabled = EXCLUDED.enabled,
    auto_sync = EXCLUDED.auto_sync,
    sync_status_changes = EXCLUDED.sync_status_changes,
    sync_comments = EXCLUDED.sync_comments,
    trigger_statuses = EXCLUDED.trigger_statuses,
    label_mapping = EXCLUDED.label_mapping,
    status_mapping = EXCLUDED.status_mapping,
    updated_at = now()
RETURNING ` + integrationColumns

type UpsertIntegrationParams struct {
	ID                int64    `json:"id"`
	OrganizationID    int64    `json:"organization_id"`
	Provider          string   `json:"provider"`
	ProviderBaseUrl   *string  `json:"provider_base_url"`
	AccessToken       string   `json:"access_token"`
	Repository        string   `json:"repository"`
	WebhookSecret     string   `json:"webhook_secret"`
	Enabled           bool     `json:"enabled"`
	AutoSync          bool     `json:"auto_sync"`
	SyncStatusChanges bool     `json:"sync_status_changes"`
	SyncComments      bool     `json:"sync_comments"`
	TriggerStatuses   []string `json:"trigger_statuses"`
	LabelMapping      []byte   `json:"label_mapping"`
	StatusMapping     []byte   `json:"status_mapping"`
}

func (q *Queries) UpsertIntegration(ctx context.Context, arg UpsertIntegrationParams) (Integration, error) {
	row := q.db.QueryRow(ctx, upsertIntegration,
		arg.ID,
		arg.OrganizationID,
		arg.Provider,
		arg.ProviderBaseUrl,
		arg.AccessToken,
		arg.Repository,
		arg.WebhookSecret,
		arg.Enabled,
		arg.AutoSync,
		arg.SyncStatusChanges,
		arg.SyncComments,
		arg.TriggerStatuses,
		arg.LabelMapping,
		arg.StatusMapping,
	)
	return scanIntegration(row)
}
