package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profitcast/profitcast/internal/shared"
)

// Repository is the persistence boundary for folders, credentials, grants,
// and access requests.
type Repository interface {
	CreateFolder(ctx context.Context, folder Folder) error
	GetFolder(ctx context.Context, id string) (*Folder, error)
	ListFoldersForUser(ctx context.Context, userID string) ([]Folder, error)
	ListAllFolders(ctx context.Context) ([]Folder, error)

	CreateCredential(ctx context.Context, cred Credential) error
	GetCredential(ctx context.Context, id string) (*Credential, error)
	ListCredentialSummaries(ctx context.Context, folderID string) ([]CredentialSummary, error)
	UpdateCredential(ctx context.Context, cred Credential) error
	DeleteCredential(ctx context.Context, id string) error
	ListExpiring(ctx context.Context, before time.Time) ([]CredentialSummary, error)

	InsertGrant(ctx context.Context, grant AccessGrant) (bool, error)
	GetGrant(ctx context.Context, userID, folderID string) (*AccessGrant, error)
	DeleteGrant(ctx context.Context, userID, folderID string) error
	DeleteGrantsForUser(ctx context.Context, userID string) (int64, error)
	HasGrant(ctx context.Context, userID, folderID string) (bool, error)
	ListGrantsForFolder(ctx context.Context, folderID string) ([]AccessGrant, error)

	CreateAccessRequest(ctx context.Context, req AccessRequest) error
	GetAccessRequest(ctx context.Context, id string) (*AccessRequest, error)
	ListRequestsByUser(ctx context.Context, userID string) ([]AccessRequest, error)
	ListPendingRequests(ctx context.Context) ([]AccessRequest, error)
	ResolveRequest(ctx context.Context, id string, status RequestStatus, resolvedBy string, resolvedAt time.Time) (bool, error)
}

// PGRepository is the PostgreSQL-backed Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateFolder(ctx context.Context, folder Folder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vault_folders (id, name, folder_type, project_id, owner_id, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		folder.ID, folder.Name, string(folder.FolderType), folder.ProjectID,
		folder.OwnerID, folder.Description, folder.CreatedBy, folder.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func scanFolder(row pgx.Row) (*Folder, error) {
	var f Folder
	var folderType string
	err := row.Scan(&f.ID, &f.Name, &folderType, &f.ProjectID, &f.OwnerID,
		&f.Description, &f.CreatedBy, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	f.FolderType = FolderType(folderType)
	return &f, nil
}

const folderColumns = `id, name, folder_type, project_id, owner_id, description, created_by, created_at`

func (r *PGRepository) GetFolder(ctx context.Context, id string) (*Folder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+folderColumns+` FROM vault_folders WHERE id = $1`, id)
	return scanFolder(row)
}

// ListFoldersForUser returns folders the user owns, created, or holds a grant
// on. Super admins bypass this and use ListAllFolders.
func (r *PGRepository) ListFoldersForUser(ctx context.Context, userID string) ([]Folder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT f.id, f.name, f.folder_type, f.project_id, f.owner_id, f.description, f.created_by, f.created_at
		FROM vault_folders f
		LEFT JOIN vault_access_grants g ON g.folder_id = f.id AND g.user_id = $1
		WHERE f.owner_id = $1 OR f.created_by = $1 OR g.id IS NOT NULL
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders for user: %w", err)
	}
	defer rows.Close()
	return collectFolders(rows)
}

func (r *PGRepository) ListAllFolders(ctx context.Context) ([]Folder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+folderColumns+` FROM vault_folders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()
	return collectFolders(rows)
}

func collectFolders(rows pgx.Rows) ([]Folder, error) {
	folders := make([]Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *PGRepository) CreateCredential(ctx context.Context, cred Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vault_credentials (id, folder_id, name, username, encrypted_secret, nonce, url, notes, expiry_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		cred.ID, cred.FolderID, cred.Name, cred.Username, cred.EncryptedSecret,
		cred.Nonce, cred.URL, cred.Notes, cred.ExpiryDate, cred.CreatedBy,
		cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *PGRepository) GetCredential(ctx context.Context, id string) (*Credential, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, folder_id, name, username, encrypted_secret, nonce, url, notes, expiry_date, created_by, created_at, updated_at
		FROM vault_credentials WHERE id = $1`, id)
	var c Credential
	err := row.Scan(&c.ID, &c.FolderID, &c.Name, &c.Username, &c.EncryptedSecret,
		&c.Nonce, &c.URL, &c.Notes, &c.ExpiryDate, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &c, nil
}

// ListCredentialSummaries deliberately never selects the encrypted columns;
// masking is enforced at the projection, not by post-processing.
func (r *PGRepository) ListCredentialSummaries(ctx context.Context, folderID string) ([]CredentialSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, folder_id, name, username, url, notes, expiry_date, created_by, created_at
		FROM vault_credentials WHERE folder_id = $1 ORDER BY name`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]CredentialSummary, error) {
	out := make([]CredentialSummary, 0)
	for rows.Next() {
		var s CredentialSummary
		err := rows.Scan(&s.ID, &s.FolderID, &s.Name, &s.Username, &s.URL,
			&s.Notes, &s.ExpiryDate, &s.CreatedBy, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan credential summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGRepository) UpdateCredential(ctx context.Context, cred Credential) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vault_credentials
		SET name = $2, username = $3, encrypted_secret = $4, nonce = $5, url = $6, notes = $7, expiry_date = $8, updated_at = $9
		WHERE id = $1`,
		cred.ID, cred.Name, cred.Username, cred.EncryptedSecret, cred.Nonce,
		cred.URL, cred.Notes, cred.ExpiryDate, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteCredential(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vault_credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListExpiring(ctx context.Context, before time.Time) ([]CredentialSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, folder_id, name, username, url, notes, expiry_date, created_by, created_at
		FROM vault_credentials
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1
		ORDER BY expiry_date`, before)
	if err != nil {
		return nil, fmt.Errorf("list expiring credentials: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

// InsertGrant is idempotent per (user, folder): a second insert for the same
// pair is a no-op and reports false.
func (r *PGRepository) InsertGrant(ctx context.Context, grant AccessGrant) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO vault_access_grants (id, user_id, folder_id, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, folder_id) DO NOTHING`,
		grant.ID, grant.UserID, grant.FolderID, grant.GrantedBy, grant.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) GetGrant(ctx context.Context, userID, folderID string) (*AccessGrant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, folder_id, granted_by, created_at
		FROM vault_access_grants WHERE user_id = $1 AND folder_id = $2`, userID, folderID)
	var g AccessGrant
	if err := row.Scan(&g.ID, &g.UserID, &g.FolderID, &g.GrantedBy, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	return &g, nil
}

func (r *PGRepository) DeleteGrant(ctx context.Context, userID, folderID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM vault_access_grants WHERE user_id = $1 AND folder_id = $2`, userID, folderID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteGrantsForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vault_access_grants WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete grants for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) HasGrant(ctx context.Context, userID, folderID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM vault_access_grants WHERE user_id = $1 AND folder_id = $2)`,
		userID, folderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) ListGrantsForFolder(ctx context.Context, folderID string) ([]AccessGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, folder_id, granted_by, created_at
		FROM vault_access_grants WHERE folder_id = $1 ORDER BY created_at`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()
	grants := make([]AccessGrant, 0)
	for rows.Next() {
		var g AccessGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.FolderID, &g.GrantedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *PGRepository) CreateAccessRequest(ctx context.Context, req AccessRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vault_access_requests (id, credential_id, requested_by, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.CredentialID, req.RequestedBy, req.Reason, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

const requestColumns = `id, credential_id, requested_by, reason, status, resolved_by, resolved_at, created_at`

func scanRequest(row pgx.Row) (*AccessRequest, error) {
	var a AccessRequest
	var status string
	err := row.Scan(&a.ID, &a.CredentialID, &a.RequestedBy, &a.Reason, &status,
		&a.ResolvedBy, &a.ResolvedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan access request: %w", err)
	}
	a.Status = RequestStatus(status)
	return &a, nil
}

func (r *PGRepository) GetAccessRequest(ctx context.Context, id string) (*AccessRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM vault_access_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *PGRepository) ListRequestsByUser(ctx context.Context, userID string) ([]AccessRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM vault_access_requests
		WHERE requested_by = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *PGRepository) ListPendingRequests(ctx context.Context) ([]AccessRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM vault_access_requests
		WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending access requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]AccessRequest, error) {
	out := make([]AccessRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// ResolveRequest transitions a pending request to a terminal status. The
// WHERE clause makes the transition race-safe: a concurrent resolver loses
// and sees false.
func (r *PGRepository) ResolveRequest(ctx context.Context, id string, status RequestStatus, resolvedBy string, resolvedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vault_access_requests
		SET status = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), resolvedBy, resolvedAt)
	if err != nil {
		return false, fmt.Errorf("resolve access request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
