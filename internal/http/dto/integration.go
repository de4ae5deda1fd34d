package dto

import (
	"time"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issue_tracker"
)

type ConnectIntegrationRequest struct {
	Provider        string  `json:"provider" binding:"required,oneof=github gitlab"`
	ProviderBaseURL *string `json:"provider_base_url,omitempty" binding:"omitempty,url"`
	// AccessToken may be omitted on updates to keep the stored token.
	AccessToken string `json:"access_token"`
	Repository  string `json:"repository" binding:"required"`

	Enabled           *bool               `json:"enabled,omitempty"`
	AutoSync          *bool               `json:"auto_sync,omitempty"`
	SyncStatusChanges *bool               `json:"sync_status_changes,omitempty"`
	SyncComments      *bool               `json:"sync_comments,omitempty"`
	TriggerStatuses   []string            `json:"trigger_statuses,omitempty"`
	LabelMapping      *model.LabelMapping `json:"label_mapping,omitempty"`
	StatusMapping     map[string]string   `json:"status_mapping,omitempty"`
}

type ValidateIntegrationRequest struct {
	Provider        string  `json:"provider" binding:"required,oneof=github gitlab"`
	ProviderBaseURL *string `json:"provider_base_url,omitempty" binding:"omitempty,url"`
	AccessToken     string  `json:"access_token" binding:"required"`
	Repository      string  `json:"repository" binding:"required"`
}

type RepositoryResponse struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	URL           string `json:"url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

func ToRepositoryResponse(r *issue_tracker.Repository) *RepositoryResponse {
	if r == nil {
		return nil
	}
	return &RepositoryResponse{
		ID:            r.ID,
		FullName:      r.FullName,
		URL:           r.URL,
		DefaultBranch: r.DefaultBranch,
		Private:       r.Private,
	}
}

// IntegrationResponse never carries the access token or webhook secret.
type IntegrationResponse struct {
	ID                int64              `json:"id,string"`
	OrganizationID    int64              `json:"organization_id,string"`
	Provider          string             `json:"provider"`
	ProviderBaseURL   *string            `json:"provider_base_url,omitempty"`
	Repository        string             `json:"repository"`
	Enabled           bool               `json:"enabled"`
	AutoSync          bool               `json:"auto_sync"`
	SyncStatusChanges bool               `json:"sync_status_changes"`
	SyncComments      bool               `json:"sync_comments"`
	TriggerStatuses   []string           `json:"trigger_statuses"`
	LabelMapping      model.LabelMapping `json:"label_mapping"`
	StatusMapping     map[string]string  `json:"status_mapping"`
	InboundWebhookURL string             `json:"inbound_webhook_url,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func ToIntegrationResponse(i *model.Integration, inboundURL string) *IntegrationResponse {
	triggers := make([]string, len(i.TriggerStatuses))
	for n, s := range i.TriggerStatuses {
		triggers[n] = string(s)
	}
	return &IntegrationResponse{
		ID:                i.ID,
		OrganizationID:    i.OrganizationID,
		Provider:          string(i.Provider),
		ProviderBaseURL:   i.ProviderBaseURL,
		Repository:        i.Repository,
		Enabled:           i.Enabled,
		AutoSync:          i.AutoSync,
		SyncStatusChanges: i.SyncStatusChanges,
		SyncComments:      i.SyncComments,
		TriggerStatuses:   triggers,
		LabelMapping:      i.LabelMapping,
		StatusMapping:     i.StatusMapping,
		InboundWebhookURL: inboundURL,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

type ConnectIntegrationResponse struct {
	Integration *IntegrationResponse `json:"integration"`
	Created     bool                 `json:"created"`
	Repository  *RepositoryResponse  `json:"repository,omitempty"`
	// WebhookSecret is returned only when hook registration failed, so the
	// hook can be added by hand.
	WebhookSecret string `json:"webhook_secret,omitempty"`
	HookID        string `json:"hook_id,omitempty"`
	HookError     string `json:"hook_error,omitempty"`
}

type ValidateIntegrationResponse struct {
	Valid      bool                `json:"valid"`
	Repository *RepositoryResponse `json:"repository,omitempty"`
}
