package user

import (
	"errors"
	"time"
)

// User is the credential store record. PasswordHash and RefreshToken never
// leave this package; every external representation goes through Public.
type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the sanitized user view returned by the API.
type Public struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfileChanges is the allow-listed field set for profile updates. Nil
// pointers mean "leave unchanged".
type ProfileChanges struct {
	Name     *string
	Username *string
	Email    *string
}

func (c ProfileChanges) Empty() bool {
	return c.Name == nil && c.Username == nil && c.Email == nil
}

// Session is the result of a successful login or refresh.
type Session struct {
	User         Public
	AccessToken  string
	RefreshToken string
}

// Page is one page of the admin user listing.
type Page struct {
	Users      []Public
	Page       int
	TotalPages int
	TotalUsers int
}

var (
	ErrNotFound            = errors.New("user not found")
	ErrConflict            = errors.New("username or email already taken")
	ErrInvalidCredentials  = errors.New("incorrect password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenUserMismatch   = errors.New("token user mismatch")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrMissingIdentifier   = errors.New("provide username or email")
	ErrNoFields            = errors.New("no fields to update")
	ErrSelfDelete          = errors.New("admins cannot delete themselves")
	ErrInvalidRole         = errors.New("invalid role")
)
