package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit entries. Insert-only by contract: there is no
// update or delete operation.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO vault_audit_logs (id, actor_user_id, action, credential_id, target_user_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.ActorUserID, string(entry.Action), entry.CredentialID, entry.TargetUserID, entry.Details, entry.CreatedAt)
	return err
}

// ListRecent returns entries newest first.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, actor_user_id, action, credential_id, target_user_id, details, created_at
FROM vault_audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		var credentialID, targetUserID pgtype.Text
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.ActorUserID, &action, &credentialID, &targetUserID, &e.Details, &createdAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		if credentialID.Valid {
			e.CredentialID = &credentialID.String
		}
		if targetUserID.Valid {
			e.TargetUserID = &targetUserID.String
		}
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		} else {
			e.CreatedAt = time.Time{}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
