package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"blog-backend/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

// CookieConfig controls the session cookies the handler sets.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	service *Service
	cookies CookieConfig
}

func NewHandler(service *Service, cookies CookieConfig) *Handler {
	return &Handler{service: service, cookies: cookies}
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	NewPassword string `json:"newpassword"`
}

type forgetPasswordRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	NewPassword string `json:"newpassword"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Username) == "" ||
		strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "name, username, email and password are required")
		return
	}

	_, err := h.service.Register(r.Context(), RegisterInput{
		Name:     body.Name,
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			writeError(w, http.StatusConflict, "user with username or email exists")
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrInvalidRole):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "user created successfully",
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	identifier := strings.TrimSpace(body.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(body.Email)
	}

	session, err := h.service.Login(r.Context(), identifier, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingIdentifier):
			writeError(w, http.StatusBadRequest, "provide username or email")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "incorrect password")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	h.setSessionCookies(w, session.AccessToken, session.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "login successful",
		"user":        session.User,
		"accessToken": session.AccessToken,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.service.Logout(r.Context(), identity.ID); err != nil && !errors.Is(err, ErrNotFound) {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "logout successful",
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		writeError(w, http.StatusBadRequest, "no refresh token provided")
		return
	}

	session, err := h.service.Refresh(r.Context(), strings.TrimSpace(cookie.Value))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRefreshToken):
			writeError(w, http.StatusForbidden, "invalid refresh token")
		case errors.Is(err, ErrTokenUserMismatch):
			writeError(w, http.StatusForbidden, "token user mismatch")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	h.setSessionCookies(w, session.AccessToken, session.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "token refreshed",
		"accessToken": session.AccessToken,
	})
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var body updatePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.UpdatePassword(r.Context(), identity.ID, body.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusUnauthorized, "user not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "password updated successfully",
	})
}

func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var body forgetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	identifier := strings.TrimSpace(body.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(body.Email)
	}

	if err := h.service.ResetPassword(r.Context(), identifier, body.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrMissingIdentifier):
			writeError(w, http.StatusBadRequest, "provide username or email")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "password changed successfully",
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	current, err := h.service.GetByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    current,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var body updateProfileRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), identity.ID, ProfileChanges{
		Name:     body.Name,
		Username: body.Username,
		Email:    body.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFields):
			writeError(w, http.StatusBadRequest, "no fields to update")
		case errors.Is(err, ErrConflict):
			writeError(w, http.StatusConflict, "username or email already taken")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusBadRequest, "failed to update user")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user updated",
		"user":    updated,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	targetID := r.PathValue("userid")
	if _, err := uuid.Parse(targetID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.Delete(r.Context(), identity.ID, targetID); err != nil {
		switch {
		case errors.Is(err, ErrSelfDelete):
			writeError(w, http.StatusBadRequest, "admins cannot delete themselves")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user deleted successfully",
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	result, err := h.service.List(r.Context(), page)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	if len(result.Users) == 0 {
		writeError(w, http.StatusNotFound, "no users found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"totalUsers": result.TotalUsers,
		"users":      result.Users,
	})
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(h.cookies.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(h.cookies.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
		})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
