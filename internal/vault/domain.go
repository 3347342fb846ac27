// Package vault implements the credential vault: encrypted storage of
// third-party secrets, folder-scoped access control, the access-request
// workflow, and the audit hooks around every sensitive operation.
package vault

import (
	"fmt"
	"time"
)

// FolderType classifies a folder. The folder is the unit of access grouping:
// access to a folder implies access to every credential inside it.
type FolderType string

const (
	FolderClient   FolderType = "client"
	FolderInternal FolderType = "internal"
	FolderProject  FolderType = "project"
	FolderPersonal FolderType = "personal"
)

// ParseFolderType validates a folder type string.
func ParseFolderType(value string) (FolderType, error) {
	switch FolderType(value) {
	case FolderClient, FolderInternal, FolderProject, FolderPersonal:
		return FolderType(value), nil
	}
	return "", fmt.Errorf("vault: unknown folder type %q", value)
}

// Folder groups credentials for access control.
type Folder struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	FolderType  FolderType `json:"folder_type"`
	ProjectID   *string    `json:"project_id,omitempty"`
	OwnerID     *string    `json:"owner_id,omitempty"`
	Description *string    `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Credential is a stored secret plus non-secret metadata. EncryptedSecret is
// base64(ciphertext || tag) and Nonce is the base64 sibling nonce; both are
// required together to decrypt and neither ever leaves the package through a
// list or read path.
type Credential struct {
	ID              string
	FolderID        string
	Name            string
	Username        *string
	EncryptedSecret string
	Nonce           string
	URL             *string
	Notes           *string
	ExpiryDate      *time.Time
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CredentialSummary is the masked projection served by list and read paths.
type CredentialSummary struct {
	ID         string     `json:"id"`
	FolderID   string     `json:"folder_id"`
	Name       string     `json:"name"`
	Username   *string    `json:"username,omitempty"`
	URL        *string    `json:"url,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Summary strips the secret fields from a credential.
func (c Credential) Summary() CredentialSummary {
	return CredentialSummary{
		ID:         c.ID,
		FolderID:   c.FolderID,
		Name:       c.Name,
		Username:   c.Username,
		URL:        c.URL,
		Notes:      c.Notes,
		ExpiryDate: c.ExpiryDate,
		CreatedBy:  c.CreatedBy,
		CreatedAt:  c.CreatedAt,
	}
}

// AccessGrant is a standing, folder-scoped, read-capable relationship between
// a user and a folder. At most one grant exists per (user, folder) pair; the
// store enforces the uniqueness.
type AccessGrant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FolderID  string    `json:"folder_id"`
	GrantedBy string    `json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestStatus is the access-request state. pending is the only non-terminal
// state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// AccessRequest asks for a grant on the folder owning a credential. It is
// resolved exactly once.
type AccessRequest struct {
	ID           string        `json:"id"`
	CredentialID string        `json:"credential_id"`
	RequestedBy  string        `json:"requested_by"`
	Reason       string        `json:"reason"`
	Status       RequestStatus `json:"status"`
	ResolvedBy   *string       `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
