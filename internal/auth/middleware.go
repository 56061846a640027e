package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"blog-backend/internal/token"
)

const (
	// AccessTokenCookie and RefreshTokenCookie name the HTTP-only cookies the
	// session endpoints set and the gate reads.
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ErrUnknownIdentity is returned by an IdentitySource when the token's
// subject no longer maps to a user record.
var ErrUnknownIdentity = errors.New("unknown identity")

// IdentitySource resolves a verified user id to a sanitized identity.
type IdentitySource interface {
	Identity(ctx context.Context, userID string) (Identity, error)
}

// Gate authenticates protected requests: it resolves the bearer token to an
// identity before the resource operation runs.
type Gate struct {
	tokens *token.Manager
	source IdentitySource
}

func NewGate(tokens *token.Manager, source IdentitySource) *Gate {
	return &Gate{tokens: tokens, source: source}
}

// Authenticate extracts the access token (cookie first, then Authorization
// header), verifies it, confirms the user still exists and attaches the
// identity to the request context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "no token provided")
			return
		}

		claims, err := g.tokens.ParseAccess(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		identity, err := g.source.Identity(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUnknownIdentity) {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole gates a handler behind a strict role equality check. It must
// run after Authenticate.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if identity.Role != role {
			writeError(w, http.StatusForbidden, "not authorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
