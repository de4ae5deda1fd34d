package store

import (
	"context"
	"errors"
	"time"

	"echo.app/relay/core/db/sqlc"
	"echo.app/relay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type feedbackStore struct {
	queries *sqlc.Queries
}

func newFeedbackStore(queries *sqlc.Queries) FeedbackStore {
	return &feedbackStore{queries: queries}
}

func (s *feedbackStore) Create(ctx context.Context, feedback *model.Feedback) error {
	row, err := s.queries.CreateFeedback(ctx, sqlc.CreateFeedbackParams{
		ID:             feedback.ID,
		OrganizationID: feedback.OrganizationID,
		Title:          feedback.Title,
		Description:    feedback.Description,
		Type:           string(feedback.Type),
		Priority:       string(feedback.Priority),
		Status:         string(feedback.Status),
	})
	if err != nil {
		return err
	}
	*feedback = *toFeedbackModel(row)
	return nil
}

func (s *feedbackStore) GetByID(ctx context.Context, id int64) (*model.Feedback, error) {
	row, err := s.queries.GetFeedback(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toFeedbackModel(row), nil
}

func (s *feedbackStore) GetByExternalIssueNumber(ctx context.Context, orgID, number int64) (*model.Feedback, error) {
	row, err := s.queries.GetFeedbackByExternalIssueNumber(ctx, sqlc.GetFeedbackByExternalIssueNumberParams{
		OrganizationID:      orgID,
		ExternalIssueNumber: &number,
	})
	if err != nil {
		return nil, notFound(err)
	}
	return toFeedbackModel(row), nil
}

func (s *feedbackStore) UpdateStatus(ctx context.Context, id int64, status model.FeedbackStatus) (*model.Feedback, error) {
	row, err := s.queries.UpdateFeedbackStatus(ctx, sqlc.UpdateFeedbackStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		return nil, notFound(err)
	}
	return toFeedbackModel(row), nil
}

func (s *feedbackStore) ClaimSync(ctx context.Context, id int64, token string, staleBefore time.Time) (bool, error) {
	_, err := s.queries.ClaimFeedbackSync(ctx, sqlc.ClaimFeedbackSyncParams{
		ID:             id,
		SyncClaimToken: &token,
		SyncClaimedAt:  pgtype.Timestamptz{Time: staleBefore, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *feedbackStore) ReleaseSyncClaim(ctx context.Context, id int64, token string) error {
	return s.queries.ReleaseFeedbackSyncClaim(ctx, sqlc.ReleaseFeedbackSyncClaimParams{
		ID:             id,
		SyncClaimToken: &token,
	})
}

func (s *feedbackStore) LinkExternalIssue(ctx context.Context, id int64, token string, link ExternalIssueLink) (*model.Feedback, error) {
	status := string(link.Status)
	row, err := s.queries.LinkFeedbackExternalIssue(ctx, sqlc.LinkFeedbackExternalIssueParams{
		ID:                  id,
		SyncClaimToken:      &token,
		ExternalIssueID:     &link.IssueID,
		ExternalIssueNumber: &link.IssueNumber,
		ExternalIssueUrl:    &link.IssueURL,
		ExternalStatus:      &status,
	})
	if err != nil {
		return nil, conflict(err)
	}
	return toFeedbackModel(row), nil
}

func (s *feedbackStore) UpdateExternalStatus(ctx context.Context, id int64, status model.ExternalStatus) (*model.Feedback, error) {
	row, err := s.queries.UpdateFeedbackExternalStatus(ctx, sqlc.UpdateFeedbackExternalStatusParams{
		ID:             id,
		ExternalStatus: strPtr(string(status)),
	})
	if err != nil {
		return nil, notFound(err)
	}
	return toFeedbackModel(row), nil
}

func (s *feedbackStore) ApplyExternalState(ctx context.Context, id int64, status model.FeedbackStatus, external model.ExternalStatus) (*model.Feedback, error) {
	row, err := s.queries.ApplyFeedbackExternalState(ctx, sqlc.ApplyFeedbackExternalStateParams{
		ID:             id,
		Status:         string(status),
		ExternalStatus: strPtr(string(external)),
	})
	if err != nil {
		return nil, notFound(err)
	}
	return toFeedbackModel(row), nil
}

func toFeedbackModel(row sqlc.Feedback) *model.Feedback {
	var externalStatus *model.ExternalStatus
	if row.ExternalStatus != nil {
		s := model.ExternalStatus(*row.ExternalStatus)
		externalStatus = &s
	}

	return &model.Feedback{
		ID:                  row.ID,
		OrganizationID:      row.OrganizationID,
		Title:               row.Title,
		Description:         row.Description,
		Type:                model.FeedbackType(row.Type),
		Priority:            model.FeedbackPriority(row.Priority),
		Status:              model.FeedbackStatus(row.Status),
		ExternalIssueID:     row.ExternalIssueID,
		ExternalIssueNumber: row.ExternalIssueNumber,
		ExternalIssueURL:    row.ExternalIssueUrl,
		ExternalSyncedAt:    pgTimestamptzToTime(row.ExternalSyncedAt),
		ExternalStatus:      externalStatus,
		CreatedAt:           row.CreatedAt.Time,
		UpdatedAt:           row.UpdatedAt.Time,
	}
}
