// Package directory is the staff administration surface: account creation,
// listing, and the offboarding flow that sweeps vault access.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/profitcast/profitcast/internal/identity"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
)

// Accounts is the slice of the identity service the directory needs.
type Accounts interface {
	CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.User, error)
	DeactivateUser(ctx context.Context, id string) error
	UserByID(ctx context.Context, id string) (*identity.User, error)
	ListUsers(ctx context.Context) ([]identity.User, error)
}

// GrantSweeper removes every vault grant a user holds. Implemented by the
// vault service; the sweep itself writes the bulk_revoke audit entry.
type GrantSweeper interface {
	RevokeAllGrants(ctx context.Context, actor shared.Principal, targetUserID string) (int64, error)
}

// Service orchestrates account lifecycle across identity and vault.
type Service struct {
	accounts Accounts
	sweeper  GrantSweeper
	sink     notify.Sink
	logger   *slog.Logger
}

// NewService constructs the directory service. sink may be nil.
func NewService(accounts Accounts, sweeper GrantSweeper, sink notify.Sink, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, sweeper: sweeper, sink: sink, logger: logger}
}

// CreateUser opens an account. The identity layer provisions the personal
// vault folder.
func (s *Service) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.User, error) {
	user, err := s.accounts.CreateUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("unknown role or invalid account: %w", httpx.ErrValidation)
	}
	return user, nil
}

// ListUsers returns the staff directory.
func (s *Service) ListUsers(ctx context.Context) ([]identity.User, error) {
	return s.accounts.ListUsers(ctx)
}

// OffboardResult summarizes an offboarding sweep.
type OffboardResult struct {
	UserID        string `json:"user_id"`
	GrantsRevoked int64  `json:"grants_revoked"`
}

// OffboardUser deactivates the account and revokes every vault grant it
// holds. Deactivation comes first so the account cannot act mid-sweep; the
// sweep records a single bulk_revoke audit entry regardless of grant count.
func (s *Service) OffboardUser(ctx context.Context, actor shared.Principal, userID string) (*OffboardResult, error) {
	user, err := s.accounts.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("directory: load user: %w", err)
	}
	if err := s.accounts.DeactivateUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("directory: deactivate: %w", err)
	}
	revoked, err := s.sweeper.RevokeAllGrants(ctx, actor, userID)
	if err != nil {
		return nil, fmt.Errorf("directory: revoke grants: %w", err)
	}
	s.logger.Info("user offboarded",
		slog.String("user_id", userID),
		slog.String("actor", actor.UserID),
		slog.Int64("grants_revoked", revoked))
	if s.sink != nil {
		s.sink.Notify(ctx, notify.Notification{
			UserID:     actor.UserID,
			Title:      "Offboarding complete",
			Message:    fmt.Sprintf("%s was deactivated and %d vault grants were revoked.", user.Username, revoked),
			Category:   "directory",
			SourceType: "user",
			SourceID:   userID,
		})
	}
	return &OffboardResult{UserID: userID, GrantsRevoked: revoked}, nil
}
