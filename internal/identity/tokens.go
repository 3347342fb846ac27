package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AccessClaims are the JWT claims carried by an access token.
type AccessClaims struct {
	Role      string `json:"role"`
	RoleLevel int    `json:"role_level"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints access tokens and manages opaque refresh tokens in Redis.
// Refresh tokens are single use: every refresh rotates the token.
type TokenIssuer struct {
	secret     []byte
	client     *redis.Client
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, client *redis.Client, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		client:     client,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// ErrTokenInvalid covers expired, malformed, or revoked tokens.
var ErrTokenInvalid = errors.New("identity: token invalid")

// IssueAccess signs a new access token for the user.
func (t *TokenIssuer) IssueAccess(user *User) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		Role:      user.Role,
		RoleLevel: user.RoleLevel,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccess validates a signed access token and returns its claims.
func (t *TokenIssuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != "access" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueRefresh stores a fresh opaque refresh token for the user.
func (t *TokenIssuer) IssueRefresh(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := t.client.Set(ctx, refreshKey(token), userID, t.refreshTTL).Err(); err != nil {
		return "", fmt.Errorf("identity: store refresh token: %w", err)
	}
	return token, nil
}

// ConsumeRefresh resolves and revokes a refresh token, returning the user id
// it belonged to.
func (t *TokenIssuer) ConsumeRefresh(ctx context.Context, token string) (string, error) {
	userID, err := t.client.GetDel(ctx, refreshKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("identity: consume refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefresh deletes a refresh token, used at logout.
func (t *TokenIssuer) RevokeRefresh(ctx context.Context, token string) error {
	if err := t.client.Del(ctx, refreshKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("identity: revoke refresh token: %w", err)
	}
	return nil
}

func refreshKey(token string) string {
	return "refresh:" + token
}
