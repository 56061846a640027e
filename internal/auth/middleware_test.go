package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-backend/internal/token"
)

type fakeSource struct {
	identities map[string]Identity
	err        error
}

func (f *fakeSource) Identity(_ context.Context, userID string) (Identity, error) {
	if f.err != nil {
		return Identity{}, f.err
	}
	identity, ok := f.identities[userID]
	if !ok {
		return Identity{}, ErrUnknownIdentity
	}
	return identity, nil
}

func newTestGate(t *testing.T) (*Gate, *token.Manager, *fakeSource) {
	t.Helper()

	tokens := token.NewManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	source := &fakeSource{identities: map[string]Identity{
		"user-1": {ID: "user-1", Name: "Alice", Username: "alice", Email: "alice@x.com", Role: RoleUser},
	}}

	return NewGate(tokens, source), tokens, source
}

func echoIdentity(t *testing.T, captured *Identity) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*captured = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_NoToken(t *testing.T) {
	gate, _, _ := newTestGate(t)

	rec := httptest.NewRecorder()
	gate.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no token")
}

func TestGate_InvalidToken(t *testing.T) {
	gate, _, _ := newTestGate(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := httptest.NewRecorder()
	gate.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestGate_CookieToken(t *testing.T) {
	gate, tokens, _ := newTestGate(t)

	access, err := tokens.IssueAccess("user-1", "alice", RoleUser, "alice@x.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: access})

	var captured Identity
	rec := httptest.NewRecorder()
	gate.Authenticate(echoIdentity(t, &captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", captured.ID)
	assert.Equal(t, "alice", captured.Username)
	assert.Equal(t, RoleUser, captured.Role)
}

func TestGate_BearerHeaderToken(t *testing.T) {
	gate, tokens, _ := newTestGate(t)

	access, err := tokens.IssueAccess("user-1", "alice", RoleUser, "alice@x.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)

	var captured Identity
	rec := httptest.NewRecorder()
	gate.Authenticate(echoIdentity(t, &captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", captured.ID)
}

func TestGate_UserGone(t *testing.T) {
	gate, tokens, _ := newTestGate(t)

	access, err := tokens.IssueAccess("deleted-user", "ghost", RoleUser, "ghost@x.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)

	rec := httptest.NewRecorder()
	gate.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}

func TestGate_SourceFailure(t *testing.T) {
	gate, tokens, source := newTestGate(t)
	source.err = errors.New("store is down")

	access, err := tokens.IssueAccess("user-1", "alice", RoleUser, "alice@x.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)

	rec := httptest.NewRecorder()
	gate.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{ID: "a", Role: RoleAdmin}))

		rec := httptest.NewRecorder()
		RequireRole(RoleAdmin, next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{ID: "u", Role: RoleUser}))

		rec := httptest.NewRecorder()
		RequireRole(RoleAdmin, next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRole(RoleAdmin, next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
