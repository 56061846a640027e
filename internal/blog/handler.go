package blog

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

const (
	maxJSONBodyBytes = 1 << 20
	listPageSize     = 5
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type updateRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body createRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" || strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	created, err := h.store.Create(r.Context(), CreateInput{
		Title:    body.Title,
		Content:  body.Content,
		Category: strings.TrimSpace(body.Category),
		Tags:     body.Tags,
	}, identity.ID)
	if err != nil {
		if errors.Is(err, ErrDuplicateTitle) {
			writeError(w, http.StatusConflict, "blog title already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create blog")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "blog created successfully",
		"blog":    created,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var body updateRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	input := UpdateInput{Title: body.Title, Content: body.Content, Category: body.Category, Tags: body.Tags}
	if input.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		input.Title = &trimmed
	}
	if input.Content != nil && strings.TrimSpace(*input.Content) == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	updated, err := h.store.Update(r.Context(), id, identity.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "blog not found")
		case errors.Is(err, ErrDuplicateTitle):
			writeError(w, http.StatusConflict, "blog title already exists")
		case errors.Is(err, ErrNoFields):
			writeError(w, http.StatusBadRequest, "no fields to update")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update blog")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "blog updated successfully",
		"blog":    updated,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, identity.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete blog")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "blog deleted successfully",
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	blogs, total, err := h.store.ListByOwner(r.Context(), identity.ID, page, listPageSize)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch blogs")
		return
	}

	if len(blogs) == 0 {
		writeError(w, http.StatusNotFound, "no blogs found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "blogs fetched successfully",
		"page":       page,
		"totalPages": (total + listPageSize - 1) / listPageSize,
		"totalBlogs": total,
		"blogs":      blogs,
	})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	found, err := h.store.GetByID(r.Context(), id, identity.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch blog")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "blog fetched successfully",
		"blog":    found,
	})
}

func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	blogs, err := h.store.FilterByTerm(r.Context(), identity.ID, r.URL.Query().Get("term"))
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to filter blogs")
		return
	}

	if len(blogs) == 0 {
		writeError(w, http.StatusNotFound, "no blogs found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "blogs filtered successfully",
		"blogs":   blogs,
	})
}

func (h *Handler) FilterByDate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	rawDate := strings.TrimSpace(r.URL.Query().Get("date"))
	if rawDate == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	day, err := time.ParseInLocation("2006-01-02", rawDate, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	// Inclusive through the last representable millisecond of the given day.
	until := day.Add(24*time.Hour - time.Millisecond)

	blogs, err := h.store.FilterByDate(r.Context(), identity.ID, until)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to filter blogs")
		return
	}

	if len(blogs) == 0 {
		writeError(w, http.StatusNotFound, "no blogs found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "blogs fetched successfully",
		"blogs":   blogs,
	})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return auth.Identity{}, false
	}

	return identity, true
}

func parseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid blog id")
		return "", false
	}

	return id, true
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
