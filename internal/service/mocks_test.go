package service_test

import (
	"context"
	"sync"
	"time"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/issuesync"
	"echo.app/relay/internal/store"
)

type mockFeedbackStore struct {
	createFn                   func(ctx context.Context, fb *model.Feedback) error
	getByIDFn                  func(ctx context.Context, id int64) (*model.Feedback, error)
	getByExternalIssueNumberFn func(ctx context.Context, orgID, number int64) (*model.Feedback, error)
	updateStatusFn             func(ctx context.Context, id int64, status model.FeedbackStatus) (*model.Feedback, error)
}

func (m *mockFeedbackStore) Create(ctx context.Context, fb *model.Feedback) error {
	if m.createFn != nil {
		return m.createFn(ctx, fb)
	}
	return nil
}

func (m *mockFeedbackStore) GetByID(ctx context.Context, id int64) (*model.Feedback, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockFeedbackStore) GetByExternalIssueNumber(ctx context.Context, orgID, number int64) (*model.Feedback, error) {
	if m.getByExternalIssueNumberFn != nil {
		return m.getByExternalIssueNumberFn(ctx, orgID, number)
	}
	return nil, store.ErrNotFound
}

func (m *mockFeedbackStore) UpdateStatus(ctx context.Context, id int64, status model.FeedbackStatus) (*model.Feedback, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil, store.ErrNotFound
}

func (m *mockFeedbackStore) ClaimSync(context.Context, int64, string, time.Time) (bool, error) {
	return false, nil
}

func (m *mockFeedbackStore) ReleaseSyncClaim(context.Context, int64, string) error {
	return nil
}

func (m *mockFeedbackStore) LinkExternalIssue(context.Context, int64, string, store.ExternalIssueLink) (*model.Feedback, error) {
	return nil, store.ErrConflict
}

func (m *mockFeedbackStore) UpdateExternalStatus(context.Context, int64, model.ExternalStatus) (*model.Feedback, error) {
	return nil, store.ErrNotFound
}

func (m *mockFeedbackStore) ApplyExternalState(context.Context, int64, model.FeedbackStatus, model.ExternalStatus) (*model.Feedback, error) {
	return nil, store.ErrNotFound
}

type mockIntegrationStore struct {
	getByIDFn              func(ctx context.Context, id int64) (*model.Integration, error)
	getByOrganizationFn    func(ctx context.Context, orgID int64) (*model.Integration, error)
	upsertFn               func(ctx context.Context, integration *model.Integration) error
	deleteByOrganizationFn func(ctx context.Context, orgID int64) error
}

func (m *mockIntegrationStore) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockIntegrationStore) GetByOrganization(ctx context.Context, orgID int64) (*model.Integration, error) {
	if m.getByOrganizationFn != nil {
		return m.getByOrganizationFn(ctx, orgID)
	}
	return nil, store.ErrNotFound
}

func (m *mockIntegrationStore) Upsert(ctx context.Context, integration *model.Integration) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, integration)
	}
	return nil
}

func (m *mockIntegrationStore) DeleteByOrganization(ctx context.Context, orgID int64) error {
	if m.deleteByOrganizationFn != nil {
		return m.deleteByOrganizationFn(ctx, orgID)
	}
	return nil
}

type mockCommentStore struct {
	createFn         func(ctx context.Context, comment *model.Comment) error
	getByIDFn        func(ctx context.Context, id int64) (*model.Comment, error)
	listByFeedbackFn func(ctx context.Context, feedbackID int64) ([]model.Comment, error)
}

func (m *mockCommentStore) Create(ctx context.Context, comment *model.Comment) error {
	if m.createFn != nil {
		return m.createFn(ctx, comment)
	}
	return nil
}

func (m *mockCommentStore) CreateExternal(context.Context, *model.Comment) (bool, error) {
	return false, nil
}

func (m *mockCommentStore) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockCommentStore) GetByExternalID(context.Context, int64, string) (*model.Comment, error) {
	return nil, store.ErrNotFound
}

func (m *mockCommentStore) ListByFeedback(ctx context.Context, feedbackID int64) ([]model.Comment, error) {
	if m.listByFeedbackFn != nil {
		return m.listByFeedbackFn(ctx, feedbackID)
	}
	return nil, nil
}

func (m *mockCommentStore) ListPendingOutbound(context.Context, int64) ([]model.Comment, error) {
	return nil, nil
}

func (m *mockCommentStore) MarkSynced(context.Context, int64, string, string) (*model.Comment, error) {
	return nil, store.ErrConflict
}

func (m *mockCommentStore) DeleteExternalEcho(context.Context, int64, string) (int64, error) {
	return 0, nil
}

type mockSubscriptionStore struct {
	createFn             func(ctx context.Context, sub *model.WebhookSubscription) error
	getByIDFn            func(ctx context.Context, id int64) (*model.WebhookSubscription, error)
	listByOrganizationFn func(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error)
	updateFn             func(ctx context.Context, sub *model.WebhookSubscription) error
	deleteFn             func(ctx context.Context, id, orgID int64) error
}

func (m *mockSubscriptionStore) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	if m.createFn != nil {
		return m.createFn(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionStore) GetByID(ctx context.Context, id int64) (*model.WebhookSubscription, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockSubscriptionStore) ListByOrganization(ctx context.Context, orgID int64) ([]model.WebhookSubscription, error) {
	if m.listByOrganizationFn != nil {
		return m.listByOrganizationFn(ctx, orgID)
	}
	return nil, nil
}

func (m *mockSubscriptionStore) ListActiveForEvent(context.Context, int64, string) ([]model.WebhookSubscription, error) {
	return nil, nil
}

func (m *mockSubscriptionStore) Update(ctx context.Context, sub *model.WebhookSubscription) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionStore) Delete(ctx context.Context, id, orgID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, orgID)
	}
	return nil
}

// mockEventStore only implements what the subscription service reads.
type mockEventStore struct {
	store.WebhookEventStore
	listBySubscriptionFn func(ctx context.Context, subscriptionID int64, limit int32) ([]model.WebhookEvent, error)
}

func (m *mockEventStore) ListBySubscription(ctx context.Context, subscriptionID int64, limit int32) ([]model.WebhookEvent, error) {
	if m.listBySubscriptionFn != nil {
		return m.listBySubscriptionFn(ctx, subscriptionID, limit)
	}
	return nil, nil
}

type statusChange struct {
	feedbackID int64
	old, new   model.FeedbackStatus
}

type mockOrchestrator struct {
	mu sync.Mutex

	syncToExternalFn     func(ctx context.Context, feedbackID int64) (*model.Feedback, error)
	syncFromExternalFn   func(ctx context.Context, feedbackID int64) (bool, error)
	applyExternalStateFn func(ctx context.Context, feedbackID int64, state model.ExternalStatus) (bool, error)

	syncCalls     []int64
	statusChanges []statusChange
	appliedStates []model.ExternalStatus
}

func (m *mockOrchestrator) SyncToExternal(ctx context.Context, feedbackID int64) (*model.Feedback, error) {
	m.mu.Lock()
	m.syncCalls = append(m.syncCalls, feedbackID)
	m.mu.Unlock()
	if m.syncToExternalFn != nil {
		return m.syncToExternalFn(ctx, feedbackID)
	}
	return nil, nil
}

func (m *mockOrchestrator) HandleStatusChange(_ context.Context, feedbackID int64, oldStatus, newStatus model.FeedbackStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusChanges = append(m.statusChanges, statusChange{feedbackID: feedbackID, old: oldStatus, new: newStatus})
}

func (m *mockOrchestrator) SyncFromExternal(ctx context.Context, feedbackID int64) (bool, error) {
	if m.syncFromExternalFn != nil {
		return m.syncFromExternalFn(ctx, feedbackID)
	}
	return false, nil
}

func (m *mockOrchestrator) ApplyExternalState(ctx context.Context, feedbackID int64, state model.ExternalStatus) (bool, error) {
	m.mu.Lock()
	m.appliedStates = append(m.appliedStates, state)
	m.mu.Unlock()
	if m.applyExternalStateFn != nil {
		return m.applyExternalStateFn(ctx, feedbackID, state)
	}
	return false, nil
}

type mockMirror struct {
	syncCommentFn     func(ctx context.Context, commentID int64) error
	createExternalFn  func(ctx context.Context, params issuesync.ExternalCommentParams) (*model.Comment, bool, error)
	syncAllPendingFn  func(ctx context.Context, feedbackID int64) (int, error)
	syncedCommentIDs  []int64
	externalRequested []issuesync.ExternalCommentParams
}

func (m *mockMirror) SyncCommentToExternal(ctx context.Context, commentID int64) error {
	m.syncedCommentIDs = append(m.syncedCommentIDs, commentID)
	if m.syncCommentFn != nil {
		return m.syncCommentFn(ctx, commentID)
	}
	return nil
}

func (m *mockMirror) CreateFromExternalEvent(ctx context.Context, params issuesync.ExternalCommentParams) (*model.Comment, bool, error) {
	m.externalRequested = append(m.externalRequested, params)
	if m.createExternalFn != nil {
		return m.createExternalFn(ctx, params)
	}
	return &model.Comment{ID: 1, FeedbackID: params.FeedbackID}, true, nil
}

func (m *mockMirror) SyncAllPendingComments(ctx context.Context, feedbackID int64) (int, error) {
	if m.syncAllPendingFn != nil {
		return m.syncAllPendingFn(ctx, feedbackID)
	}
	return 0, nil
}

type emittedEvent struct {
	orgID     int64
	eventType string
	data      any
}

type mockEmitter struct {
	mu     sync.Mutex
	err    error
	events []emittedEvent
}

func (m *mockEmitter) Emit(_ context.Context, orgID int64, eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, emittedEvent{orgID: orgID, eventType: eventType, data: data})
	return m.err
}

func (m *mockEmitter) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.eventType
	}
	return out
}

type mockReplayer struct {
	replayFn func(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error)
}

func (m *mockReplayer) Replay(ctx context.Context, orgID, eventID int64) (*model.WebhookEvent, error) {
	if m.replayFn != nil {
		return m.replayFn(ctx, orgID, eventID)
	}
	return &model.WebhookEvent{ID: eventID, OrganizationID: orgID, Status: model.WebhookEventStatusPending}, nil
}

func ptr[T any](v T) *T {
	return &v
}
