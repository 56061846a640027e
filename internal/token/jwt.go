package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// The two token classes are signed with distinct secrets and live for
// distinct windows: a leaked access token expires in minutes, while a refresh
// token stays revocable through the stored-value check in the user store.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed, tampered and wrong-class tokens.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired marks a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token is expired")
)

// AccessClaims is the claim set embedded in short-lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
}

// RefreshClaims carries only the user id; everything else about the session
// lives in the store.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	TokenType string `json:"typ"`
}

// Manager mints and verifies both token classes with symmetric HMAC.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) IssueAccess(userID, username, role, email string) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		UserID:    userID,
		Username:  username,
		Role:      role,
		Email:     email,
		TokenType: typeAccess,
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return encoded, nil
}

// IssueRefresh mints a refresh token with a unique jti, so two tokens for
// the same user issued within the same second still differ and rotation
// always replaces the stored value with a distinct one.
func (m *Manager) IssueRefresh(userID string) (string, error) {
	now := time.Now().UTC()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
		UserID:    userID,
		TokenType: typeRefresh,
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	return encoded, nil
}

// ParseAccess verifies signature first, then expiry. No claim is trusted on
// any failure path.
func (m *Manager) ParseAccess(tokenString string) (AccessClaims, error) {
	claims := AccessClaims{}
	if err := m.parse(tokenString, &claims, m.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	if claims.TokenType != typeAccess {
		return AccessClaims{}, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) ParseRefresh(tokenString string) (RefreshClaims, error) {
	claims := RefreshClaims{}
	if err := m.parse(tokenString, &claims, m.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.TokenType != typeRefresh {
		return RefreshClaims{}, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}

	return nil
}
