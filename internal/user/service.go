package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"blog-backend/internal/auth"
	"blog-backend/internal/password"
	"blog-backend/internal/token"
)

const (
	minPasswordLength = 8
	listPageSize      = 5
)

// Service is the session manager: it orchestrates registration, login,
// logout and refresh rotation against the credential store and the token
// manager. At most one refresh token is valid per user; every rotation and
// logout invalidates the previous one through the stored-value check.
type Service struct {
	store  Store
	hasher *password.Hasher
	tokens *token.Manager
}

func NewService(store Store, hasher *password.Hasher, tokens *token.Manager) *Service {
	return &Service{store: store, hasher: hasher, tokens: tokens}
}

type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     string
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (Public, error) {
	name := strings.TrimSpace(input.Name)
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = auth.RoleUser
	}
	if role != auth.RoleUser && role != auth.RoleAdmin {
		return Public{}, ErrInvalidRole
	}
	if len(input.Password) < minPasswordLength {
		return Public{}, ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return Public{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Public{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	u := User{
		ID:           id.String(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		return Public{}, err
	}

	return u.Public(), nil
}

// Login verifies the credentials and mints a fresh token pair. Overwriting
// the stored refresh token here is the only place a session is created.
func (s *Service) Login(ctx context.Context, identifier, plainPassword string) (Session, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return Session{}, ErrMissingIdentifier
	}

	u, err := s.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return Session{}, err
	}

	if !s.hasher.Verify(plainPassword, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(u.ID, u.Username, u.Role, u.Email)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return Session{}, err
	}

	if err := s.store.SetRefreshToken(ctx, u.ID, refresh); err != nil {
		return Session{}, err
	}

	return Session{User: u.Public(), AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the session by clearing the stored refresh token. The old
// token stays cryptographically valid until expiry but can never pass the
// stored-value check again.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.ClearRefreshToken(ctx, userID)
}

// Refresh exchanges a presented refresh token for a new access/refresh pair.
// The token must verify AND match the stored value (lookup is by token
// value, not by claimed id, so a stale-but-unexpired token replayed after
// rotation finds nothing). The rotation itself is a conditional update, so
// of two concurrent refreshes with the same token only one wins.
func (s *Service) Refresh(ctx context.Context, oldToken string) (Session, error) {
	claims, err := s.tokens.ParseRefresh(oldToken)
	if err != nil {
		return Session{}, ErrInvalidRefreshToken
	}

	u, err := s.store.GetByRefreshToken(ctx, oldToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}
	if claims.UserID != u.ID {
		return Session{}, ErrTokenUserMismatch
	}

	access, err := s.tokens.IssueAccess(u.ID, u.Username, u.Role, u.Email)
	if err != nil {
		return Session{}, err
	}
	newRefresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.store.RotateRefreshToken(ctx, oldToken, newRefresh); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}

	return Session{User: u.Public(), AccessToken: access, RefreshToken: newRefresh}, nil
}

// UpdatePassword rehashes and stores a new password for an authenticated
// user. Existing sessions are not revoked.
func (s *Service) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.store.UpdatePassword(ctx, userID, hash)
}

// ResetPassword is the unauthenticated reset path. It trusts identifier
// possession only; it is kept separate from UpdatePassword so a verified
// flow can replace it without touching the rest of the session manager.
func (s *Service) ResetPassword(ctx context.Context, identifier, newPassword string) error {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return ErrMissingIdentifier
	}

	u, err := s.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.store.UpdatePassword(ctx, u.ID, hash)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, changes ProfileChanges) (Public, error) {
	if changes.Empty() {
		return Public{}, ErrNoFields
	}

	normalize := func(value *string, lower bool) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		if lower {
			trimmed = strings.ToLower(trimmed)
		}
		return &trimmed
	}
	changes.Name = normalize(changes.Name, false)
	changes.Username = normalize(changes.Username, true)
	changes.Email = normalize(changes.Email, true)

	u, err := s.store.UpdateProfile(ctx, userID, changes)
	if err != nil {
		return Public{}, err
	}

	return u.Public(), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Public, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Public{}, err
	}

	return u.Public(), nil
}

// List returns one page of non-admin users for the admin listing.
func (s *Service) List(ctx context.Context, page int) (Page, error) {
	if page < 1 {
		page = 1
	}

	users, total, err := s.store.List(ctx, page, listPageSize)
	if err != nil {
		return Page{}, err
	}

	sanitized := make([]Public, 0, len(users))
	for _, u := range users {
		sanitized = append(sanitized, u.Public())
	}

	return Page{
		Users:      sanitized,
		Page:       page,
		TotalPages: (total + listPageSize - 1) / listPageSize,
		TotalUsers: total,
	}, nil
}

// Delete removes another user's account. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, adminID, targetID string) error {
	if adminID == targetID {
		return ErrSelfDelete
	}

	return s.store.Delete(ctx, targetID)
}

// Identity implements the authorization gate's identity source: it confirms
// the token subject still exists and returns the sanitized view.
func (s *Service) Identity(ctx context.Context, userID string) (auth.Identity, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Identity{}, auth.ErrUnknownIdentity
		}
		return auth.Identity{}, err
	}

	return auth.Identity{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}, nil
}

// SeedAdmin creates an administrator account from the environment when the
// store has none. Unlike a single-tenant bootstrap it never touches existing
// accounts.
func (s *Service) SeedAdmin(ctx context.Context, name, username, email, plainPassword string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" && email == "" && plainPassword == "" {
		return nil
	}
	if username == "" || email == "" || plainPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	hasAdmin, err := s.store.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if hasAdmin {
		return nil
	}

	if name == "" {
		name = username
	}

	_, err = s.Register(ctx, RegisterInput{
		Name:     name,
		Username: username,
		Email:    email,
		Password: plainPassword,
		Role:     auth.RoleAdmin,
	})
	if errors.Is(err, ErrConflict) {
		return nil
	}

	return err
}
