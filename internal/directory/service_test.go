package directory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/profitcast/profitcast/internal/identity"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
)

type fakeAccounts struct {
	users map[string]*identity.User
}

func (f *fakeAccounts) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.User, error) {
	if _, ok := shared.RoleLevels[params.Role]; !ok {
		return nil, shared.ErrNotFound
	}
	user := &identity.User{
		ID:       "user-" + params.Username,
		Username: params.Username,
		Role:     params.Role,
		IsActive: true,
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeAccounts) DeactivateUser(ctx context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (f *fakeAccounts) UserByID(ctx context.Context, id string) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeAccounts) ListUsers(ctx context.Context) ([]identity.User, error) {
	out := make([]identity.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

type fakeSweeper struct {
	swept   []string
	revoked int64
}

func (f *fakeSweeper) RevokeAllGrants(ctx context.Context, actor shared.Principal, targetUserID string) (int64, error) {
	f.swept = append(f.swept, targetUserID)
	return f.revoked, nil
}

type captureSink struct {
	sent []notify.Notification
}

func (s *captureSink) Notify(ctx context.Context, n notify.Notification) {
	s.sent = append(s.sent, n)
}

func TestOffboardUser(t *testing.T) {
	accounts := &fakeAccounts{users: map[string]*identity.User{
		"user-bob": {ID: "user-bob", Username: "bob", IsActive: true},
	}}
	sweeper := &fakeSweeper{revoked: 3}
	sink := &captureSink{}
	svc := NewService(accounts, sweeper, sink, slog.Default())

	hr := shared.Principal{UserID: "user-hr", RoleLevel: shared.LevelHRManager}
	result, err := svc.OffboardUser(context.Background(), hr, "user-bob")
	require.NoError(t, err)
	require.EqualValues(t, 3, result.GrantsRevoked)

	require.False(t, accounts.users["user-bob"].IsActive)
	require.Equal(t, []string{"user-bob"}, sweeper.swept)
	require.Len(t, sink.sent, 1)
	require.Equal(t, "user-hr", sink.sent[0].UserID)
}

func TestOffboardUnknownUser(t *testing.T) {
	accounts := &fakeAccounts{users: map[string]*identity.User{}}
	svc := NewService(accounts, &fakeSweeper{}, nil, slog.Default())

	hr := shared.Principal{UserID: "user-hr", RoleLevel: shared.LevelHRManager}
	_, err := svc.OffboardUser(context.Background(), hr, "user-ghost")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	accounts := &fakeAccounts{users: map[string]*identity.User{}}
	svc := NewService(accounts, &fakeSweeper{}, nil, slog.Default())

	_, err := svc.CreateUser(context.Background(), identity.CreateUserParams{
		Username: "eve", Role: "warlock",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
