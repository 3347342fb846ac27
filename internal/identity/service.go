package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/profitcast/profitcast/internal/shared"
)

// FolderProvisioner creates the personal vault folder that every new account
// receives. Implemented by the vault service.
type FolderProvisioner interface {
	ProvisionPersonalFolder(ctx context.Context, userID, displayName string) error
}

// Service wraps authentication and account business rules.
type Service struct {
	repo        Repository
	tokens      *TokenIssuer
	provisioner FolderProvisioner
	logger      *slog.Logger
}

// NewService constructs a new Service. provisioner may be nil in tests.
func NewService(repo Repository, tokens *TokenIssuer, provisioner FolderProvisioner, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, provisioner: provisioner, logger: logger}
}

// Login validates username/password credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*User, TokenPair, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		// Unknown accounts look like bad credentials; infrastructure
		// failures must not.
		if errors.Is(err, shared.ErrNotFound) {
			return nil, TokenPair{}, shared.ErrInvalidCredentials
		}
		return nil, TokenPair{}, fmt.Errorf("identity: load user: %w", err)
	}
	if !user.IsActive {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token into a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*User, TokenPair, error) {
	userID, err := s.tokens.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil, TokenPair{}, ErrTokenInvalid
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Logout revokes the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefresh(ctx, refreshToken)
}

// UserByID loads an account.
func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateUserParams collects the fields needed to open an account.
type CreateUserParams struct {
	Username  string
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
}

// CreateUser registers a new account and provisions its personal vault
// folder. The folder step is best effort: the account stands even if
// provisioning fails.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	if _, ok := shared.RoleLevels[params.Role]; !ok {
		return nil, fmt.Errorf("identity: unknown role %q", params.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: string(hash),
		Role:         params.Role,
		RoleLevel:    shared.LevelForRole(params.Role),
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("identity: create user: %w", err)
	}
	if s.provisioner != nil {
		displayName := fmt.Sprintf("%s %s", params.FirstName, params.LastName)
		if err := s.provisioner.ProvisionPersonalFolder(ctx, user.ID, displayName); err != nil {
			s.logger.Warn("personal folder provisioning failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
	}
	return &user, nil
}

// DeactivateUser disables an account so its bearer tokens stop resolving.
func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrNotFound
		}
		return fmt.Errorf("identity: deactivate user: %w", err)
	}
	return nil
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) issuePair(ctx context.Context, user *User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
