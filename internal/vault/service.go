package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/profitcast/profitcast/internal/audit"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
	"github.com/profitcast/profitcast/internal/vault/cipher"
)

// Auditor records vault audit entries. Satisfied by *audit.Service.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns vault business logic: encryption at the storage boundary,
// masking on every read path, folder-scoped authorization, and the audit
// trail around sensitive operations.
type Service struct {
	repo    Repository
	engine  *cipher.Engine
	auditor Auditor
	sink    notify.Sink
	logger  *slog.Logger
	reveals prometheus.Counter
}

// NewService constructs the vault service. sink and reveals may be nil.
func NewService(repo Repository, engine *cipher.Engine, auditor Auditor, sink notify.Sink, logger *slog.Logger, reveals prometheus.Counter) *Service {
	return &Service{
		repo:    repo,
		engine:  engine,
		auditor: auditor,
		sink:    sink,
		logger:  logger,
		reveals: reveals,
	}
}

// authorizeRead enforces the folder read rule: super admin, owner, creator,
// or a standing grant.
func (s *Service) authorizeRead(ctx context.Context, p shared.Principal, folder Folder) error {
	hasGrant := false
	if p.RoleLevel < shared.LevelSuperAdmin {
		var err error
		hasGrant, err = s.repo.HasGrant(ctx, p.UserID, folder.ID)
		if err != nil {
			return fmt.Errorf("vault: check grant: %w", err)
		}
	}
	if !Evaluate(p, folder, hasGrant).Allowed() {
		return fmt.Errorf("folder %s: %w", folder.ID, httpx.ErrForbidden)
	}
	return nil
}

func (s *Service) folder(ctx context.Context, id string) (*Folder, error) {
	folder, err := s.repo.GetFolder(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("folder %s: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: load folder: %w", err)
	}
	return folder, nil
}

func (s *Service) credential(ctx context.Context, id string) (*Credential, error) {
	cred, err := s.repo.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("credential %s: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: load credential: %w", err)
	}
	return cred, nil
}

// CreateFolder creates a folder. Personal folders default their owner to the
// acting user.
func (s *Service) CreateFolder(ctx context.Context, actor shared.Principal, req CreateFolderRequest) (*Folder, error) {
	folderType, err := ParseFolderType(req.FolderType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.FolderType, httpx.ErrValidation)
	}
	owner := req.OwnerID
	if folderType == FolderPersonal && owner == nil {
		actorID := actor.UserID
		owner = &actorID
	}
	folder := Folder{
		ID:          uuid.NewString(),
		Name:        req.Name,
		FolderType:  folderType,
		ProjectID:   req.ProjectID,
		OwnerID:     owner,
		Description: req.Description,
		CreatedBy:   actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("vault: create folder: %w", err)
	}
	return &folder, nil
}

// ProvisionPersonalFolder creates the private folder every user gets at
// onboarding.
func (s *Service) ProvisionPersonalFolder(ctx context.Context, userID, displayName string) error {
	owner := userID
	folder := Folder{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("%s's Personal", displayName),
		FolderType: FolderPersonal,
		OwnerID:    &owner,
		CreatedBy:  userID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return fmt.Errorf("vault: provision personal folder: %w", err)
	}
	return nil
}

// ListFolders returns the folders visible to the actor: everything for super
// admins, otherwise owned, created, or granted folders.
func (s *Service) ListFolders(ctx context.Context, actor shared.Principal) ([]Folder, error) {
	if actor.RoleLevel >= shared.LevelSuperAdmin {
		return s.repo.ListAllFolders(ctx)
	}
	return s.repo.ListFoldersForUser(ctx, actor.UserID)
}

// ListFolderCredentials returns the masked credentials of one folder.
func (s *Service) ListFolderCredentials(ctx context.Context, actor shared.Principal, folderID string) ([]CredentialSummary, error) {
	folder, err := s.folder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, *folder); err != nil {
		return nil, err
	}
	return s.repo.ListCredentialSummaries(ctx, folderID)
}

// CreateCredential encrypts and stores a new secret, returning the masked
// projection. The plaintext is never persisted or logged.
func (s *Service) CreateCredential(ctx context.Context, actor shared.Principal, req CreateCredentialRequest) (*CredentialSummary, error) {
	folder, err := s.folder(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}
	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	sealed, nonce, err := s.engine.SealString(req.Password)
	if err != nil {
		s.logger.Error("credential encrypt failed", slog.Any("error", err))
		return nil, fmt.Errorf("seal credential: %w", httpx.ErrCrypto)
	}
	now := time.Now().UTC()
	cred := Credential{
		ID:              uuid.NewString(),
		FolderID:        folder.ID,
		Name:            req.Name,
		Username:        req.Username,
		EncryptedSecret: sealed,
		Nonce:           nonce,
		URL:             req.URL,
		Notes:           req.Notes,
		ExpiryDate:      expiry,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("vault: create credential: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionCreate,
		CredentialID: &cred.ID,
		Details:      fmt.Sprintf("created credential %q in folder %q", cred.Name, folder.Name),
	})
	summary := cred.Summary()
	return &summary, nil
}

// GetCredential returns the masked projection of one credential, subject to
// the folder read rule.
func (s *Service) GetCredential(ctx context.Context, actor shared.Principal, id string) (*CredentialSummary, error) {
	cred, err := s.credential(ctx, id)
	if err != nil {
		return nil, err
	}
	folder, err := s.folder(ctx, cred.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, *folder); err != nil {
		return nil, err
	}
	summary := cred.Summary()
	return &summary, nil
}

// RevealCredential decrypts one secret for an authorized actor. Every
// successful reveal produces exactly one audit entry; a decryption failure
// produces none and surfaces as a cryptographic failure.
func (s *Service) RevealCredential(ctx context.Context, actor shared.Principal, id string) (string, error) {
	cred, err := s.credential(ctx, id)
	if err != nil {
		return "", err
	}
	folder, err := s.folder(ctx, cred.FolderID)
	if err != nil {
		return "", err
	}
	if err := s.authorizeRead(ctx, actor, *folder); err != nil {
		return "", err
	}
	plaintext, err := s.engine.OpenString(cred.EncryptedSecret, cred.Nonce)
	if err != nil {
		s.logger.Error("credential decrypt failed",
			slog.String("credential_id", cred.ID),
			slog.String("actor", actor.UserID))
		return "", fmt.Errorf("credential %s: %w", cred.ID, httpx.ErrCrypto)
	}
	if s.reveals != nil {
		s.reveals.Inc()
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionReveal,
		CredentialID: &cred.ID,
		Details:      fmt.Sprintf("revealed credential %q", cred.Name),
	})
	return plaintext, nil
}

// RecordCopy documents a clipboard copy. The client already holds the
// plaintext from a prior reveal; this only writes the trail.
func (s *Service) RecordCopy(ctx context.Context, actor shared.Principal, id string) error {
	cred, err := s.credential(ctx, id)
	if err != nil {
		return err
	}
	folder, err := s.folder(ctx, cred.FolderID)
	if err != nil {
		return err
	}
	if err := s.authorizeRead(ctx, actor, *folder); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionCopy,
		CredentialID: &cred.ID,
		Details:      fmt.Sprintf("copied credential %q", cred.Name),
	})
	return nil
}

// UpdateCredential replaces metadata and secret. The secret is re-encrypted
// under a fresh nonce even when unchanged.
func (s *Service) UpdateCredential(ctx context.Context, actor shared.Principal, id string, req UpdateCredentialRequest) (*CredentialSummary, error) {
	cred, err := s.credential(ctx, id)
	if err != nil {
		return nil, err
	}
	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	sealed, nonce, err := s.engine.SealString(req.Password)
	if err != nil {
		s.logger.Error("credential encrypt failed", slog.Any("error", err))
		return nil, fmt.Errorf("seal credential: %w", httpx.ErrCrypto)
	}
	cred.Name = req.Name
	cred.Username = req.Username
	cred.EncryptedSecret = sealed
	cred.Nonce = nonce
	cred.URL = req.URL
	cred.Notes = req.Notes
	cred.ExpiryDate = expiry
	cred.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCredential(ctx, *cred); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("credential %s: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: update credential: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionEdit,
		CredentialID: &cred.ID,
		Details:      fmt.Sprintf("updated credential %q", cred.Name),
	})
	summary := cred.Summary()
	return &summary, nil
}

// DeleteCredential removes a credential and documents the deletion.
func (s *Service) DeleteCredential(ctx context.Context, actor shared.Principal, id string) error {
	cred, err := s.credential(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCredential(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("credential %s: %w", id, httpx.ErrNotFound)
		}
		return fmt.Errorf("vault: delete credential: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionDelete,
		CredentialID: &cred.ID,
		Details:      fmt.Sprintf("deleted credential %q", cred.Name),
	})
	return nil
}

// GrantAccess adds a standing grant on a folder. Granting the same pair twice
// returns the stored grant without notifying again; the created flag tells
// the two cases apart.
func (s *Service) GrantAccess(ctx context.Context, actor shared.Principal, folderID, userID string) (*AccessGrant, bool, error) {
	folder, err := s.folder(ctx, folderID)
	if err != nil {
		return nil, false, err
	}
	grant := AccessGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		FolderID:  folder.ID,
		GrantedBy: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.InsertGrant(ctx, grant)
	if err != nil {
		return nil, false, fmt.Errorf("vault: grant access: %w", err)
	}
	if !created {
		existing, err := s.repo.GetGrant(ctx, userID, folder.ID)
		if err != nil {
			return nil, false, fmt.Errorf("vault: load existing grant: %w", err)
		}
		return existing, false, nil
	}
	if s.sink != nil {
		s.sink.Notify(ctx, notify.Notification{
			UserID:     userID,
			Title:      "Vault access granted",
			Message:    fmt.Sprintf("You now have access to the folder %q.", folder.Name),
			Category:   "vault",
			SourceType: "folder",
			SourceID:   folder.ID,
		})
	}
	return &grant, true, nil
}

// RevokeAccess removes one grant.
func (s *Service) RevokeAccess(ctx context.Context, actor shared.Principal, folderID, userID string) error {
	if err := s.repo.DeleteGrant(ctx, userID, folderID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("grant: %w", httpx.ErrNotFound)
		}
		return fmt.Errorf("vault: revoke access: %w", err)
	}
	return nil
}

// RevokeAllGrants removes every grant held by a user and writes a single
// bulk_revoke entry covering the sweep. Used by offboarding.
func (s *Service) RevokeAllGrants(ctx context.Context, actor shared.Principal, targetUserID string) (int64, error) {
	count, err := s.repo.DeleteGrantsForUser(ctx, targetUserID)
	if err != nil {
		return 0, fmt.Errorf("vault: revoke all grants: %w", err)
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actor.UserID,
		Action:       audit.ActionBulkRevoke,
		TargetUserID: &targetUserID,
		Details:      fmt.Sprintf("revoked %d folder grants", count),
	})
	return count, nil
}

// ListFolderGrants returns a folder's grants for administration screens.
func (s *Service) ListFolderGrants(ctx context.Context, actor shared.Principal, folderID string) ([]AccessGrant, error) {
	if _, err := s.folder(ctx, folderID); err != nil {
		return nil, err
	}
	return s.repo.ListGrantsForFolder(ctx, folderID)
}

// ExpiringCredentials returns credentials whose expiry falls within the
// window. Consumed by the expiry-scan job.
func (s *Service) ExpiringCredentials(ctx context.Context, within time.Duration) ([]CredentialSummary, error) {
	return s.repo.ListExpiring(ctx, time.Now().UTC().Add(within))
}

// parseExpiry converts a YYYY-MM-DD string; nil stays nil. Malformed input is
// a validation error, never a silently dropped expiry.
func parseExpiry(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, fmt.Errorf("expiry date %q: %w", *value, httpx.ErrValidation)
	}
	t = t.UTC()
	return &t, nil
}
