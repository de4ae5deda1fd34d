package store

import (
	"context"
	"encoding/json"
	"fmt"

	"echo.app/relay/core/db/sqlc"
	"echo.app/relay/internal/model"
)

type integrationStore struct {
	queries *sqlc.Queries
}

func newIntegrationStore(queries *sqlc.Queries) IntegrationStore {
	return &integrationStore{queries: queries}
}

func (s *integrationStore) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	row, err := s.queries.GetIntegration(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toIntegrationModel(row)
}

func (s *integrationStore) GetByOrganization(ctx context.Context, orgID int64) (*model.Integration, error) {
	row, err := s.queries.GetIntegrationByOrganization(ctx, orgID)
	if err != nil {
		return nil, notFound(err)
	}
	return toIntegrationModel(row)
}

func (s *integrationStore) Upsert(ctx context.Context, integration *model.Integration) error {
	labelMapping, err := json.Marshal(integration.LabelMapping)
	if err != nil {
		return fmt.Errorf("encoding label mapping: %w", err)
	}
	statusMapping := integration.StatusMapping
	if statusMapping == nil {
		statusMapping = model.StatusMapping{}
	}
	statusMappingJSON, err := json.Marshal(statusMapping)
	if err != nil {
		return fmt.Errorf("encoding status mapping: %w", err)
	}

	triggers := make([]string, len(integration.TriggerStatuses))
	for i, s := range integration.TriggerStatuses {
		triggers[i] = string(s)
	}

	row, err := s.queries.UpsertIntegration(ctx, sqlc.UpsertIntegrationParams{
		ID:                integration.ID,
		OrganizationID:    integration.OrganizationID,
		Provider:          string(integration.Provider),
		ProviderBaseUrl:   integration.ProviderBaseURL,
		AccessToken:       integration.AccessToken,
		Repository:        integration.Repository,
		WebhookSecret:     integration.WebhookSecret,
		Enabled:           integration.Enabled,
		AutoSync:          integration.AutoSync,
		SyncStatusChanges: integration.SyncStatusChanges,
		SyncComments:      integration.SyncComments,
		TriggerStatuses:   triggers,
		LabelMapping:      labelMapping,
		StatusMapping:     statusMappingJSON,
	})
	if err != nil {
		return err
	}
	saved, err := toIntegrationModel(row)
	if err != nil {
		return err
	}
	*integration = *saved
	return nil
}

func (s *integrationStore) DeleteByOrganization(ctx context.Context, orgID int64) error {
	return s.queries.DeleteIntegrationByOrganization(ctx, orgID)
}

// toIntegrationModel converts sqlc.Integration to model.Integration
func toIntegrationModel(row sqlc.Integration) (*model.Integration, error) {
	var labels model.LabelMapping
	if len(row.LabelMapping) > 0 {
		if err := json.Unmarshal(row.LabelMapping, &labels); err != nil {
			return nil, fmt.Errorf("decoding label mapping for integration %d: %w", row.ID, err)
		}
	}
	statuses := model.StatusMapping{}
	if len(row.StatusMapping) > 0 {
		if err := json.Unmarshal(row.StatusMapping, &statuses); err != nil {
			return nil, fmt.Errorf("decoding status mapping for integration %d: %w", row.ID, err)
		}
	}

	triggers := make([]model.FeedbackStatus, len(row.TriggerStatuses))
	for i, s := range row.TriggerStatuses {
		triggers[i] = model.FeedbackStatus(s)
	}

	return &model.Integration{
		ID:                row.ID,
		OrganizationID:    row.OrganizationID,
		Provider:          model.Provider(row.Provider),
		ProviderBaseURL:   row.ProviderBaseUrl,
		AccessToken:       row.AccessToken,
		Repository:        row.Repository,
		WebhookSecret:     row.WebhookSecret,
		Enabled:           row.Enabled,
		AutoSync:          row.AutoSync,
		SyncStatusChanges: row.SyncStatusChanges,
		SyncComments:      row.SyncComments,
		TriggerStatuses:   triggers,
		LabelMapping:      labels,
		StatusMapping:     statuses,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}, nil
}
