package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profitcast/profitcast/internal/shared"
)

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores one notification.
func (r *PGRepository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications (id, user_id, title, message, category, source_type, source_id, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Title, n.Message, n.Category, n.SourceType, n.SourceID, n.IsRead, n.CreatedAt)
	return err
}

// ListByUser returns a user's notifications, newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, title, message, category, source_type, source_id, is_read, created_at
FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var sourceType, sourceID pgtype.Text
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &sourceType, &sourceID, &n.IsRead, &createdAt); err != nil {
			return nil, err
		}
		n.SourceType = sourceType.String
		n.SourceID = sourceID.String
		n.CreatedAt = createdAt.Time
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read, scoped to its owner.
func (r *PGRepository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
