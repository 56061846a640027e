package blog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-backend/internal/auth"
)

// memStore is an in-memory Store with the same ownership scoping the real
// repository enforces in SQL.
type memStore struct {
	mu    sync.Mutex
	blogs map[string]Blog
	now   time.Time
}

func newMemStore() *memStore {
	return &memStore{blogs: make(map[string]Blog), now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memStore) Create(_ context.Context, input CreateInput, ownerID string) (Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.blogs {
		if b.Title == input.Title {
			return Blog{}, ErrDuplicateTitle
		}
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	m.now = m.now.Add(time.Minute)
	b := Blog{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Content:   input.Content,
		Category:  input.Category,
		Tags:      tags,
		OwnerID:   ownerID,
		CreatedAt: m.now,
		UpdatedAt: m.now,
	}
	m.blogs[b.ID] = b

	return b, nil
}

func (m *memStore) GetByID(_ context.Context, id, ownerID string) (Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blogs[id]
	if !ok || b.OwnerID != ownerID {
		return Blog{}, ErrNotFound
	}

	return b, nil
}

func (m *memStore) Update(_ context.Context, id, ownerID string, input UpdateInput) (Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blogs[id]
	if !ok || b.OwnerID != ownerID {
		return Blog{}, ErrNotFound
	}
	if input.Empty() {
		return Blog{}, ErrNoFields
	}

	if input.Title != nil {
		for otherID, other := range m.blogs {
			if otherID != id && other.Title == *input.Title {
				return Blog{}, ErrDuplicateTitle
			}
		}
		b.Title = *input.Title
	}
	if input.Content != nil {
		b.Content = *input.Content
	}
	if input.Category != nil {
		b.Category = *input.Category
	}
	if input.Tags != nil {
		b.Tags = *input.Tags
	}
	b.UpdatedAt = m.now
	m.blogs[id] = b

	return b, nil
}

func (m *memStore) Delete(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blogs[id]
	if !ok || b.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.blogs, id)

	return nil
}

func (m *memStore) owned(ownerID string) []Blog {
	owned := make([]Blog, 0)
	for _, b := range m.blogs {
		if b.OwnerID == ownerID {
			owned = append(owned, b)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	return owned
}

func (m *memStore) ListByOwner(_ context.Context, ownerID string, page, perPage int) ([]Blog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.owned(ownerID)
	start := (page - 1) * perPage
	if start >= len(owned) {
		return []Blog{}, len(owned), nil
	}
	end := start + perPage
	if end > len(owned) {
		end = len(owned)
	}

	return owned[start:end], len(owned), nil
}

func (m *memStore) FilterByTerm(_ context.Context, ownerID, term string) ([]Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	term = strings.ToLower(strings.TrimSpace(term))
	matched := make([]Blog, 0)
	for _, b := range m.owned(ownerID) {
		if strings.Contains(strings.ToLower(b.Title), term) ||
			strings.Contains(strings.ToLower(b.Content), term) ||
			strings.Contains(strings.ToLower(b.Category), term) {
			matched = append(matched, b)
		}
	}

	return matched, nil
}

func (m *memStore) FilterByDate(_ context.Context, ownerID string, until time.Time) ([]Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]Blog, 0)
	for _, b := range m.owned(ownerID) {
		if !b.CreatedAt.After(until) {
			matched = append(matched, b)
		}
	}

	return matched, nil
}

var (
	alice = auth.Identity{ID: uuid.NewString(), Username: "alice", Role: auth.RoleUser}
	bob   = auth.Identity{ID: uuid.NewString(), Username: "bob", Role: auth.RoleUser}
)

func newTestHandler() (*Handler, *memStore) {
	store := newMemStore()
	return NewHandler(store), store
}

func requestAs(identity auth.Identity, method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	return body
}

func createBlog(t *testing.T, store *memStore, owner auth.Identity, title string) Blog {
	t.Helper()

	b, err := store.Create(context.Background(), CreateInput{Title: title, Content: "content of " + title}, owner.ID)
	require.NoError(t, err)

	return b
}

func TestHandler_Create(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.Create(rec, requestAs(alice, http.MethodPost, "/api/v1/blogs/",
		`{"title":"First Post","content":"hello","category":"tech","tags":["go"]}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	created, ok := body["blog"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "First Post", created["title"])
	assert.Equal(t, alice.ID, created["ownerId"])

	rec = httptest.NewRecorder()
	h.Create(rec, requestAs(alice, http.MethodPost, "/api/v1/blogs/",
		`{"title":"First Post","content":"again"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, requestAs(alice, http.MethodPost, "/api/v1/blogs/",
		`{"title":"   ","content":"hello"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No identity in context.
	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/blogs/", strings.NewReader(`{"title":"x","content":"y"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_GetByID_OwnershipReadsAsNotFound(t *testing.T) {
	h, store := newTestHandler()
	b := createBlog(t, store, alice, "Alice Post")

	get := func(identity auth.Identity, id string) *httptest.ResponseRecorder {
		req := requestAs(identity, http.MethodGet, "/api/v1/blogs/"+id, "")
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		h.GetByID(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get(alice, b.ID).Code)

	// Another tenant gets the same answer as a missing id.
	assert.Equal(t, http.StatusNotFound, get(bob, b.ID).Code)
	assert.Equal(t, http.StatusNotFound, get(alice, uuid.NewString()).Code)

	assert.Equal(t, http.StatusBadRequest, get(alice, "not-a-uuid").Code)
}

func TestHandler_Update(t *testing.T) {
	h, store := newTestHandler()
	b := createBlog(t, store, alice, "Alice Post")

	patch := func(identity auth.Identity, id, body string) *httptest.ResponseRecorder {
		req := requestAs(identity, http.MethodPatch, "/api/v1/blogs/"+id, body)
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		h.Update(rec, req)
		return rec
	}

	rec := patch(alice, b.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated, ok := decodeBody(t, rec)["blog"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Renamed", updated["title"])

	assert.Equal(t, http.StatusBadRequest, patch(alice, b.ID, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(alice, b.ID, `{"title":"  "}`).Code)
	assert.Equal(t, http.StatusNotFound, patch(bob, b.ID, `{"title":"Stolen"}`).Code)

	other := createBlog(t, store, alice, "Other Post")
	assert.Equal(t, http.StatusConflict, patch(alice, other.ID, `{"title":"Renamed"}`).Code)
}

func TestHandler_Delete(t *testing.T) {
	h, store := newTestHandler()
	b := createBlog(t, store, alice, "Alice Post")

	del := func(identity auth.Identity, id string) *httptest.ResponseRecorder {
		req := requestAs(identity, http.MethodDelete, "/api/v1/blogs/"+id, "")
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		h.Delete(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, del(bob, b.ID).Code)
	assert.Equal(t, http.StatusOK, del(alice, b.ID).Code)
	assert.Equal(t, http.StatusNotFound, del(alice, b.ID).Code)
}

func TestHandler_List(t *testing.T) {
	h, store := newTestHandler()

	rec := httptest.NewRecorder()
	h.List(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 6; i++ {
		createBlog(t, store, alice, fmt.Sprintf("Post %d", i))
	}
	createBlog(t, store, bob, "Bob Post")

	rec = httptest.NewRecorder()
	h.List(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/?page=1", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(6), body["totalBlogs"])
	assert.Equal(t, float64(2), body["totalPages"])
	blogs, ok := body["blogs"].([]any)
	require.True(t, ok)
	assert.Len(t, blogs, 5)

	rec = httptest.NewRecorder()
	h.List(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/?page=2", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	blogs, ok = decodeBody(t, rec)["blogs"].([]any)
	require.True(t, ok)
	assert.Len(t, blogs, 1)
}

func TestHandler_Filter(t *testing.T) {
	h, store := newTestHandler()
	createBlog(t, store, alice, "Cooking With Go")
	createBlog(t, store, alice, "Gardening")
	createBlog(t, store, bob, "Go Concurrency")

	rec := httptest.NewRecorder()
	h.Filter(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filter?term=go", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	blogs, ok := decodeBody(t, rec)["blogs"].([]any)
	require.True(t, ok)
	assert.Len(t, blogs, 1)

	rec = httptest.NewRecorder()
	h.Filter(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filter?term=nomatch", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_FilterByDate(t *testing.T) {
	h, store := newTestHandler()

	rec := httptest.NewRecorder()
	h.FilterByDate(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filterbydate", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.FilterByDate(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filterbydate?date=03-01-2026", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Store clock starts 2026-03-01 and advances per create.
	createBlog(t, store, alice, "On The Day")

	rec = httptest.NewRecorder()
	h.FilterByDate(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filterbydate?date=2026-03-01", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	blogs, ok := decodeBody(t, rec)["blogs"].([]any)
	require.True(t, ok)
	assert.Len(t, blogs, 1)

	// A cutoff before the post's day matches nothing.
	rec = httptest.NewRecorder()
	h.FilterByDate(rec, requestAs(alice, http.MethodGet, "/api/v1/blogs/filterbydate?date=2026-02-28", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
