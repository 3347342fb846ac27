package identity

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/profitcast/profitcast/internal/shared"
)

type memoryUserRepo struct {
	users map[string]*User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*User)}
}

func (r *memoryUserRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepo) Create(ctx context.Context, user User) error {
	r.users[user.ID] = &user
	return nil
}

func (r *memoryUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (r *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func testService(t *testing.T) (*Service, *memoryUserRepo, *TokenIssuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := NewTokenIssuer("test-secret", client, 15*time.Minute, 24*time.Hour)
	repo := newMemoryUserRepo()
	svc := NewService(repo, tokens, nil, slog.Default())
	return svc, repo, tokens
}

func seedUser(t *testing.T, repo *memoryUserRepo, username, password string, level int) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{
		ID:           "user-" + username,
		Username:     username,
		Email:        username + "@profitcast.local",
		PasswordHash: string(hash),
		Role:         "employee",
		RoleLevel:    level,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	repo.users[user.ID] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	svc, repo, tokens := testService(t)
	seedUser(t, repo, "alice", "s3cret", shared.LevelManager)

	user, pair, err := svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "user-alice", user.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)

	claims, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-alice", claims.Subject)
	require.Equal(t, shared.LevelManager, claims.RoleLevel)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo, _ := testService(t)
	seedUser(t, repo, "alice", "s3cret", shared.LevelEmployee)

	_, _, err := svc.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

type failingUserRepo struct {
	*memoryUserRepo
}

func (r *failingUserRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	return nil, errors.New("connection refused")
}

func TestLoginRepoFailureIsNotBadCredentials(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens := NewTokenIssuer("test-secret", client, 15*time.Minute, 24*time.Hour)
	svc := NewService(&failingUserRepo{newMemoryUserRepo()}, tokens, nil, slog.Default())

	// A database outage must surface as an internal failure, not a 401.
	_, _, err := svc.Login(context.Background(), "alice", "s3cret")
	require.Error(t, err)
	require.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	svc, repo, _ := testService(t)
	user := seedUser(t, repo, "alice", "s3cret", shared.LevelEmployee)
	user.IsActive = false

	_, _, err := svc.Login(context.Background(), "alice", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo, _ := testService(t)
	seedUser(t, repo, "alice", "s3cret", shared.LevelEmployee)

	_, pair, err := svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	_, next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The consumed token is single use.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	svc, repo, _ := testService(t)
	seedUser(t, repo, "alice", "s3cret", shared.LevelEmployee)

	_, pair, err := svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshDeniedAfterDeactivation(t *testing.T) {
	svc, repo, _ := testService(t)
	user := seedUser(t, repo, "alice", "s3cret", shared.LevelEmployee)

	_, pair, err := svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateUser(context.Background(), user.ID))

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.CreateUser(context.Background(), CreateUserParams{
		Username: "bob", Email: "bob@profitcast.local", Password: "pw", Role: "warlock",
	})
	require.Error(t, err)
}

func TestParseAccessRejectsGarbage(t *testing.T) {
	_, _, tokens := testService(t)
	_, err := tokens.ParseAccess("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
