package store

import (
	"context"
	"errors"

	"echo.app/relay/core/db/sqlc"
	"echo.app/relay/internal/model"
	"github.com/jackc/pgx/v5"
)

type commentStore struct {
	queries *sqlc.Queries
}

func newCommentStore(queries *sqlc.Queries) CommentStore {
	return &commentStore{queries: queries}
}

func (s *commentStore) Create(ctx context.Context, comment *model.Comment) error {
	row, err := s.queries.CreateComment(ctx, sqlc.CreateCommentParams{
		ID:         comment.ID,
		FeedbackID: comment.FeedbackID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		Content:    comment.Content,
		IsInternal: comment.IsInternal,
	})
	if err != nil {
		return err
	}
	*comment = *toCommentModel(row)
	return nil
}

func (s *commentStore) CreateExternal(ctx context.Context, comment *model.Comment) (bool, error) {
	row, err := s.queries.CreateExternalComment(ctx, sqlc.CreateExternalCommentParams{
		ID:                 comment.ID,
		FeedbackID:         comment.FeedbackID,
		AuthorName:         comment.AuthorName,
		Content:            comment.Content,
		ExternalCommentID:  comment.ExternalCommentID,
		ExternalCommentUrl: comment.ExternalCommentURL,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	*comment = *toCommentModel(row)
	return true, nil
}

func (s *commentStore) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	row, err := s.queries.GetComment(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toCommentModel(row), nil
}

func (s *commentStore) GetByExternalID(ctx context.Context, feedbackID int64, externalID string) (*model.Comment, error) {
	row, err := s.queries.GetCommentByExternalID(ctx, sqlc.GetCommentByExternalIDParams{
		FeedbackID:        feedbackID,
		ExternalCommentID: &externalID,
	})
	if err != nil {
		return nil, notFound(err)
	}
	return toCommentModel(row), nil
}

func (s *commentStore) ListByFeedback(ctx context.Context, feedbackID int64) ([]model.Comment, error) {
	rows, err := s.queries.ListCommentsByFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return toCommentModels(rows), nil
}

func (s *commentStore) ListPendingOutbound(ctx context.Context, feedbackID int64) ([]model.Comment, error) {
	rows, err := s.queries.ListPendingOutboundComments(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return toCommentModels(rows), nil
}

func (s *commentStore) MarkSynced(ctx context.Context, id int64, externalID, externalURL string) (*model.Comment, error) {
	row, err := s.queries.MarkCommentSynced(ctx, sqlc.MarkCommentSyncedParams{
		ID:                 id,
		ExternalCommentID:  &externalID,
		ExternalCommentUrl: &externalURL,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateExternalID
		}
		return nil, conflict(err)
	}
	return toCommentModel(row), nil
}

func (s *commentStore) DeleteExternalEcho(ctx context.Context, feedbackID int64, externalID string) (int64, error) {
	return s.queries.DeleteExternalCommentEcho(ctx, sqlc.DeleteExternalCommentEchoParams{
		FeedbackID:        feedbackID,
		ExternalCommentID: &externalID,
	})
}

func toCommentModel(row sqlc.Comment) *model.Comment {
	return &model.Comment{
		ID:                 row.ID,
		FeedbackID:         row.FeedbackID,
		AuthorID:           row.AuthorID,
		AuthorName:         row.AuthorName,
		Content:            row.Content,
		IsInternal:         row.IsInternal,
		ExternalCommentID:  row.ExternalCommentID,
		ExternalCommentURL: row.ExternalCommentUrl,
		ExternalSyncedAt:   pgTimestamptzToTime(row.ExternalSyncedAt),
		SyncedFromExternal: row.SyncedFromExternal,
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
}

func toCommentModels(rows []sqlc.Comment) []model.Comment {
	result := make([]model.Comment, len(rows))
	for i, row := range rows {
		result[i] = *toCommentModel(row)
	}
	return result
}
