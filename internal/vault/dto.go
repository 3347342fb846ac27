package vault

// CreateFolderRequest creates a folder. owner_id is only meaningful for
// personal folders.
type CreateFolderRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	FolderType  string  `json:"folder_type" validate:"required"`
	ProjectID   *string `json:"project_id,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// CreateCredentialRequest stores a new secret. The password field is the only
// place plaintext enters the subsystem.
type CreateCredentialRequest struct {
	FolderID   string  `json:"folder_id" validate:"required"`
	Name       string  `json:"name" validate:"required,max=200"`
	Username   *string `json:"username,omitempty" validate:"omitempty,max=200"`
	Password   string  `json:"password" validate:"required,max=4096"`
	URL        *string `json:"url,omitempty" validate:"omitempty,max=500"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ExpiryDate *string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateCredentialRequest replaces a credential's metadata and secret. The
// secret is always re-encrypted with a fresh nonce.
type UpdateCredentialRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Username   *string `json:"username,omitempty" validate:"omitempty,max=200"`
	Password   string  `json:"password" validate:"required,max=4096"`
	URL        *string `json:"url,omitempty" validate:"omitempty,max=500"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ExpiryDate *string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RevealResponse carries decrypted secret material. It exists solely for the
// reveal endpoint.
type RevealResponse struct {
	Password string `json:"password"`
}

// GrantRequest adds a team member to a folder.
type GrantRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateAccessRequestRequest files an access request against a credential.
type CreateAccessRequestRequest struct {
	CredentialID string `json:"credential_id" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=1000"`
}

// ResolveAccessRequestRequest approves or denies a pending request.
type ResolveAccessRequestRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}
