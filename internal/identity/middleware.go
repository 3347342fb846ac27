package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
)

// Authenticator turns bearer credentials into request principals and gates
// routes by minimum role level.
type Authenticator struct {
	Tokens *TokenIssuer
	Users  Repository
	Logger *slog.Logger
}

// RequireAuth validates the bearer token, confirms the account is still
// active, and attaches the principal to the request context. The role level
// comes from the user record, not the token, so demotions take effect without
// waiting for token expiry.
func (a Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		claims, err := a.Tokens.ParseAccess(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		user, err := a.Users.FindByID(r.Context(), claims.Subject)
		if err != nil || !user.IsActive {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		principal := shared.Principal{
			UserID:    user.ID,
			Role:      user.Role,
			RoleLevel: user.RoleLevel,
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireLevel ensures the principal meets a minimum role level. It must be
// mounted after RequireAuth.
func (a Authenticator) RequireLevel(min int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if principal.RoleLevel < min {
				if a.Logger != nil {
					a.Logger.Warn("insufficient role level",
						slog.String("user_id", principal.UserID),
						slog.Int("level", principal.RoleLevel),
						slog.Int("required", min),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
