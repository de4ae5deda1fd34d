// source: comments.sql

package sqlc

import (
	"context"
)

const commentColumns = `id, feedback_id, author_id, author_name, content, is_internal, external_comment_id, external_comment_url, external_synced_at, synced_from_external, created_at, updated_at`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var i Comment
	err := row.Scan(
		&i.ID,
		&i.FeedbackID,
		&i.AuthorID,
		&i.AuthorName,
		&i.Content,
		&i.IsInternal,
		&i.ExternalCommentID,
		&i.ExternalCommentUrl,
		&i.ExternalSyncedAt,
		&i.SyncedFromExternal,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createComment = `-- name: CreateComment :one
INSERT INTO comments (id, feedback_id, author_id, author_name, content, is_internal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + commentColumns

type CreateCommentParams struct {
	ID         int64  `json:"id"`
	FeedbackID int64  `json:"feedback_id"`
	AuthorID   *int64 `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) (Comment, error) {
	row := q.db.QueryRow(ctx, createComment,
		arg.ID,
		arg.FeedbackID,
		arg.AuthorID,
		arg.AuthorName,
		arg.Content,
		arg.IsInternal,
	)
	return scanComment(row)
}

const createExternalComment = `-- name: CreateExternalComment :one
INSERT INTO comments (
    id, feedback_id, author_name, content, is_internal,
    external_comment_id, external_comment_url, external_synced_at, synced_from_external
)
VALUES ($1, $2, $3, $4, false, $5, $6, now(), true)
ON CONFLICT (feedback_id, external_comment_id) WHERE external_comment_id IS NOT NULL DO NOTHING
RETURNING ` + commentColumns

type CreateExternalCommentParams struct {
	ID                 int64   `json:"id"`
	FeedbackID         int64   `json:"feedback_id"`
	AuthorName         string  `json:"author_name"`
	Content            string  `json:"content"`
	ExternalCommentID  *string `json:"external_comment_id"`
	ExternalCommentUrl *string `json:"external_comment_url"`
}

// Returns pgx.ErrNoRows when a comment with the same external id already exists.
func (q *Queries) CreateExternalComment(ctx context.Context, arg CreateExternalCommentParams) (Comment, error) {
	row := q.db.QueryRow(ctx, createExternalComment,
		arg.ID,
		arg.FeedbackID,
		arg.AuthorName,
		arg.Content,
		arg.ExternalCommentID,
		arg.ExternalCommentUrl,
	)
	return scanComment(row)
}

const getComment = `-- name: GetComment :one
SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

func (q *Queries) GetComment(ctx context.Context, id int64) (Comment, error) {
	row := q.db.QueryRow(ctx, getComment, id)
	return scanComment(row)
}

const getCommentByExternalID = `-- name: GetCommentByExternalID :one
SELECT ` + commentColumns + ` FROM comments WHERE feedback_id = $1 AND external_comment_id = $2`

type GetCommentByExternalIDParams struct {
	FeedbackID        int64   `json:"feedback_id"`
	ExternalCommentID *string `json:"external_comment_id"`
}

func (q *Queries) GetCommentByExternalID(ctx context.Context, arg GetCommentByExternalIDParams) (Comment, error) {
	row := q.db.QueryRow(ctx, getCommentByExternalID, arg.FeedbackID, arg.ExternalCommentID)
	return scanComment(row)
}

const listCommentsByFeedback = `-- name: ListCommentsByFeedback :many
SELECT ` + commentColumns + ` FROM comments WHERE feedback_id = $1 ORDER BY created_at, id`

func (q *Queries) ListCommentsByFeedback(ctx context.Context, feedbackID int64) ([]Comment, error) {
	return q.listComments(ctx, listCommentsByFeedback, feedbackID)
}

const listPendingOutboundComments = `-- name: ListPendingOutboundComments :many
SELECT ` + commentColumns + ` FROM comments
WHERE feedback_id = $1
  AND external_comment_id IS NULL
  AND synced_from_external = false
  AND is_internal = false
ORDER BY created_at, id`

func (q *Queries) ListPendingOutboundComments(ctx context.Context, feedbackID int64) ([]Comment, error) {
	return q.listComments(ctx, listPendingOutboundComments, feedbackID)
}

func (q *Queries) listComments(ctx context.Context, query string, args ...interface{}) ([]Comment, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Comment{}
	for rows.Next() {
		i, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markCommentSynced = `-- name: MarkCommentSynced :one
UPDATE comments
SET external_comment_id = $2, external_comment_url = $3, external_synced_at = now(), updated_at = now()
WHERE id = $1 AND external_comment_id IS NULL
RETURNING ` + commentColumns

type MarkCommentSyncedParams struct {
	ID                 int64   `json:"id"`
	ExternalCommentID  *string `json:"external_comment_id"`
	ExternalCommentUrl *string `json:"external_comment_url"`
}

func (q *Queries) MarkCommentSynced(ctx context.Context, arg MarkCommentSyncedParams) (Comment, error) {
	row := q.db.QueryRow(ctx, markCommentSynced, arg.ID, arg.ExternalCommentID, arg.ExternalCommentUrl)
	return scanComment(row)
}

const deleteExternalCommentEcho = `-- name: DeleteExternalCommentEcho :execrows
DELETE FROM comments
WHERE feedback_id = $1 AND external_comment_id = $2 AND synced_from_external = true`

type DeleteExternalCommentEchoParams struct {
	FeedbackID        int64   `json:"feedback_id"`
	ExternalCommentID *string `json:"external_comment_id"`
}

func (q *Queries) DeleteExternalCommentEcho(ctx context.Context, arg DeleteExternalCommentEchoParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteExternalCommentEcho, arg.FeedbackID, arg.ExternalCommentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
