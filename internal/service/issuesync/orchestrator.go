package issuesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issue_tracker"
	"echo.app/relay/internal/store"
)

// DefaultClaimTTL is how long a first-sync claim blocks other callers before
// it is considered abandoned.
const DefaultClaimTTL = 5 * time.Minute

// ErrClaimLost is returned when the external issue was created but the claim
// expired and was taken over before the link could be persisted.
var ErrClaimLost = errors.New("sync claim lost before the external issue was linked")

// TrackerProvider resolves tracker clients for integrations.
type TrackerProvider interface {
	Supports(provider model.Provider, capability issue_tracker.Capability) bool
	ClientFor(integration *model.Integration) (issue_tracker.Client, error)
}

// EventEmitter publishes events to the organization's webhook subscribers.
type EventEmitter interface {
	Emit(ctx context.Context, orgID int64, eventType string, data any) error
}

type OrchestratorConfig struct {
	DashboardURL string
	ClaimTTL     time.Duration
}

// Orchestrator keeps feedback and its external issue in step.
type Orchestrator struct {
	feedback     store.FeedbackStore
	integrations store.IntegrationStore
	trackers     TrackerProvider
	events       EventEmitter
	cfg          OrchestratorConfig
	logger       *slog.Logger

	now      func() time.Time
	newToken func() string
}

func NewOrchestrator(
	feedback store.FeedbackStore,
	integrations store.IntegrationStore,
	trackers TrackerProvider,
	events EventEmitter,
	cfg OrchestratorConfig,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	return &Orchestrator{
		feedback:     feedback,
		integrations: integrations,
		trackers:     trackers,
		events:       events,
		cfg:          cfg,
		logger:       log,
		now:          time.Now,
		newToken:     id.Token,
	}
}

// SyncToExternal creates the external issue for unlinked feedback.
// Returns (nil, nil) when there is nothing to do: feedback missing or already
// linked, no enabled auto-syncing integration, or another caller holds the claim.
// Tracker failures are returned.
func (o *Orchestrator) SyncToExternal(ctx context.Context, feedbackID int64) (*model.Feedback, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &feedbackID,
		Component:  "echo.issuesync.orchestrator",
	})

	fb, err := o.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching feedback: %w", err)
	}
	if fb.IsLinked() {
		o.logger.DebugContext(ctx, "feedback already linked, skipping sync")
		return nil, nil
	}

	integration, err := o.activeIntegration(ctx, fb.OrganizationID)
	if err != nil {
		return nil, err
	}
	if integration == nil || !integration.AutoSync {
		return nil, nil
	}
	if !o.trackers.Supports(integration.Provider, issue_tracker.CapabilityIssueSync) {
		o.logger.DebugContext(ctx, "provider does not support issue sync", "provider", integration.Provider)
		return nil, nil
	}

	return o.createIssue(ctx, fb, integration)
}

func (o *Orchestrator) createIssue(ctx context.Context, fb *model.Feedback, integration *model.Integration) (*model.Feedback, error) {
	token := o.newToken()
	claimed, err := o.feedback.ClaimSync(ctx, fb.ID, token, o.now().Add(-o.cfg.ClaimTTL))
	if err != nil {
		return nil, fmt.Errorf("claiming feedback for sync: %w", err)
	}
	if !claimed {
		o.logger.InfoContext(ctx, "feedback sync already in progress or linked, skipping")
		return nil, nil
	}

	client, err := o.trackers.ClientFor(integration)
	if err != nil {
		o.release(ctx, fb.ID, token)
		return nil, err
	}

	issue, err := client.CreateIssue(ctx, issue_tracker.CreateIssueParams{
		Title:  fb.Title,
		Body:   RenderIssueBody(fb, o.cfg.DashboardURL),
		Labels: LabelsFor(fb.Type, fb.Priority, integration.LabelMapping),
	})
	if err != nil {
		o.release(ctx, fb.ID, token)
		return nil, fmt.Errorf("creating external issue: %w", err)
	}

	state := issue.State
	if state == "" {
		state = model.ExternalStatusOpen
	}

	linked, err := o.feedback.LinkExternalIssue(ctx, fb.ID, token, store.ExternalIssueLink{
		IssueID:     issue.ID,
		IssueNumber: issue.Number,
		IssueURL:    issue.URL,
		Status:      state,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			o.logger.ErrorContext(ctx, "external issue created but claim was lost; issue is orphaned",
				"external_issue_number", issue.Number,
				"external_issue_url", issue.URL)
			return nil, ErrClaimLost
		}
		return nil, fmt.Errorf("linking external issue: %w", err)
	}

	o.logger.InfoContext(ctx, "feedback synced to external issue",
		"external_issue_number", issue.Number,
		"provider", integration.Provider)

	o.emit(ctx, linked.OrganizationID, model.EventFeedbackSynced, model.FeedbackEventData{Feedback: linked})
	return linked, nil
}

// HandleStatusChange reacts to a local status transition. Failures are logged
// and never returned so the local update that triggered it always stands.
func (o *Orchestrator) HandleStatusChange(ctx context.Context, feedbackID int64, oldStatus, newStatus model.FeedbackStatus) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &feedbackID,
		Component:  "echo.issuesync.orchestrator",
	})

	fb, err := o.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.logger.ErrorContext(ctx, "status sync: fetching feedback failed", "error", err)
		}
		return
	}

	integration, err := o.activeIntegration(ctx, fb.OrganizationID)
	if err != nil {
		o.logger.ErrorContext(ctx, "status sync: fetching integration failed", "error", err)
		return
	}
	if integration == nil || !integration.SyncStatusChanges {
		return
	}

	if !fb.IsLinked() {
		if !integration.IsTrigger(newStatus) {
			return
		}
		if _, err := o.SyncToExternal(ctx, feedbackID); err != nil {
			o.logger.ErrorContext(ctx, "status sync: creating external issue failed",
				"old_status", oldStatus, "new_status", newStatus, "error", err)
		}
		return
	}

	if !o.trackers.Supports(integration.Provider, issue_tracker.CapabilityIssueSync) {
		return
	}

	target, ok := ExternalStateFor(newStatus, integration.StatusMapping)
	if !ok {
		o.logger.WarnContext(ctx, "status sync: no external state for status", "new_status", newStatus)
		return
	}
	if target == fb.CurrentExternalStatus() {
		o.logger.DebugContext(ctx, "status sync: external state unchanged", "external_status", target)
		return
	}

	client, err := o.trackers.ClientFor(integration)
	if err != nil {
		o.logger.ErrorContext(ctx, "status sync: building tracker client failed", "error", err)
		return
	}

	number := *fb.ExternalIssueNumber
	if target == model.ExternalStatusClosed {
		_, err = client.CloseIssue(ctx, number)
	} else {
		_, err = client.ReopenIssue(ctx, number)
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "status sync: updating external issue failed",
			"external_issue_number", number, "target", target, "error", err)
		return
	}

	if _, err := o.feedback.UpdateExternalStatus(ctx, feedbackID, target); err != nil {
		o.logger.ErrorContext(ctx, "status sync: persisting external status failed", "target", target, "error", err)
		return
	}

	o.logger.InfoContext(ctx, "external issue state updated",
		"external_issue_number", number,
		"old_status", oldStatus,
		"new_status", newStatus,
		"external_status", target)
}

// SyncFromExternal pulls the issue's current state and reconciles the local status.
// Returns changed=false without error when the feedback is unlinked or the organization has no integration.
func (o *Orchestrator) SyncFromExternal(ctx context.Context, feedbackID int64) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &feedbackID,
		Component:  "echo.issuesync.orchestrator",
	})

	fb, err := o.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetching feedback: %w", err)
	}
	if !fb.IsLinked() {
		return false, nil
	}

	integration, err := o.activeIntegration(ctx, fb.OrganizationID)
	if err != nil {
		return false, err
	}
	if integration == nil || !o.trackers.Supports(integration.Provider, issue_tracker.CapabilityIssueSync) {
		return false, nil
	}

	client, err := o.trackers.ClientFor(integration)
	if err != nil {
		return false, err
	}

	issue, err := client.GetIssue(ctx, *fb.ExternalIssueNumber)
	if err != nil {
		return false, fmt.Errorf("fetching external issue: %w", err)
	}

	return o.reconcile(ctx, fb, issue.State)
}

// ApplyExternalState reconciles local status with a state reported by an
// inbound tracker webhook, without calling the tracker.
func (o *Orchestrator) ApplyExternalState(ctx context.Context, feedbackID int64, state model.ExternalStatus) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FeedbackID: &feedbackID,
		Component:  "echo.issuesync.orchestrator",
	})

	fb, err := o.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetching feedback: %w", err)
	}
	if !fb.IsLinked() {
		return false, nil
	}

	integration, err := o.activeIntegration(ctx, fb.OrganizationID)
	if err != nil {
		return false, err
	}
	if integration == nil {
		return false, nil
	}

	// The tracker echoes back state changes we pushed ourselves; a local status
	// that already maps to this state is left alone.
	if current, ok := ExternalStateFor(fb.Status, integration.StatusMapping); ok && current == state {
		if fb.CurrentExternalStatus() != state {
			if _, err := o.feedback.UpdateExternalStatus(ctx, fb.ID, state); err != nil {
				return false, fmt.Errorf("persisting external status: %w", err)
			}
		}
		return false, nil
	}

	return o.reconcile(ctx, fb, state)
}

func (o *Orchestrator) reconcile(ctx context.Context, fb *model.Feedback, state model.ExternalStatus) (bool, error) {
	target, ok := LocalStatusFor(state)
	if !ok {
		return false, fmt.Errorf("unknown external state %q", state)
	}

	if fb.Status == target {
		if _, err := o.feedback.UpdateExternalStatus(ctx, fb.ID, state); err != nil {
			return false, fmt.Errorf("persisting external status: %w", err)
		}
		return false, nil
	}

	updated, err := o.feedback.ApplyExternalState(ctx, fb.ID, target, state)
	if err != nil {
		return false, fmt.Errorf("applying external state: %w", err)
	}

	o.logger.InfoContext(ctx, "local status updated from external issue",
		"old_status", fb.Status,
		"new_status", target,
		"external_status", state)

	o.emit(ctx, updated.OrganizationID, model.EventFeedbackStatusChanged, model.FeedbackStatusChangedData{
		Feedback:  updated,
		OldStatus: fb.Status,
		NewStatus: target,
		Source:    model.ChangeSourceExternal,
	})
	return true, nil
}

// activeIntegration returns nil when the organization has no enabled integration.
func (o *Orchestrator) activeIntegration(ctx context.Context, orgID int64) (*model.Integration, error) {
	integration, err := o.integrations.GetByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching integration: %w", err)
	}
	if !integration.Enabled {
		return nil, nil
	}
	return integration, nil
}

func (o *Orchestrator) release(ctx context.Context, feedbackID int64, token string) {
	if err := o.feedback.ReleaseSyncClaim(context.WithoutCancel(ctx), feedbackID, token); err != nil {
		o.logger.WarnContext(ctx, "releasing sync claim failed; it expires on its own", "error", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, orgID int64, eventType string, data any) {
	if o.events == nil {
		return
	}
	if err := o.events.Emit(ctx, orgID, eventType, data); err != nil {
		o.logger.ErrorContext(ctx, "emitting webhook event failed", "event_type", eventType, "error", err)
	}
}

// RenderIssueBody renders the external issue body: the description, a
// metadata table and a link back to the feedback in the dashboard.
func RenderIssueBody(fb *model.Feedback, dashboardURL string) string {
	var b strings.Builder

	description := strings.TrimSpace(fb.Description)
	if description == "" {
		description = "_No description provided._"
	}
	b.WriteString(description)
	b.WriteString("\n\n---\n\n")

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Type | %s |\n", fb.Type)
	fmt.Fprintf(&b, "| Priority | %s |\n", fb.Priority)
	fmt.Fprintf(&b, "| Status | %s |\n", fb.Status)
	if !fb.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "| Submitted | %s |\n", fb.CreatedAt.UTC().Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "\n[View feedback in Echo](%s/feedback/%d)\n", strings.TrimSuffix(dashboardURL, "/"), fb.ID)
	return b.String()
}
