package model

import "time"

// Provider represents the issue tracker behind an integration
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

// LabelMapping overrides the default labels applied to created issues.
// Keys are feedback type / priority values, values are label names.
type LabelMapping struct {
	Type     map[string]string `json:"type,omitempty"`
	Priority map[string]string `json:"priority,omitempty"`
}

// StatusMapping overrides local status -> external state ("open" or "closed").
type StatusMapping map[string]string

type Integration struct {
	ID              int64    `json:"id"`
	OrganizationID  int64    `json:"organization_id"`
	Provider        Provider `json:"provider"`
	ProviderBaseURL *string  `json:"provider_base_url,omitempty"`
	AccessToken     string   `json:"-"` // never expose tokens in API
	Repository      string   `json:"repository"`
	WebhookSecret   string   `json:"-"`

	Enabled           bool             `json:"enabled"`
	AutoSync          bool             `json:"auto_sync"`
	SyncStatusChanges bool             `json:"sync_status_changes"`
	SyncComments      bool             `json:"sync_comments"`
	TriggerStatuses   []FeedbackStatus `json:"trigger_statuses"`
	LabelMapping      LabelMapping     `json:"label_mapping"`
	StatusMapping     StatusMapping    `json:"status_mapping"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTrigger reports whether entering status should create the external issue.
func (i *Integration) IsTrigger(status FeedbackStatus) bool {
	for _, s := range i.TriggerStatuses {
		if s == status {
			return true
		}
	}
	return false
}
