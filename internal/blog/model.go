package blog

import (
	"errors"
	"time"
)

// Blog is a post owned by a single user. OwnerID is a back-reference to the
// user record; every by-id operation scopes on it so one tenant can never
// see another's posts.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Title    string
	Content  string
	Category string
	Tags     []string
}

// UpdateInput is the allow-listed partial update. Nil means unchanged; the
// owner reference and timestamps are never writable from a request.
type UpdateInput struct {
	Title    *string
	Content  *string
	Category *string
	Tags     *[]string
}

func (u UpdateInput) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Category == nil && u.Tags == nil
}

var (
	// ErrNotFound covers both a missing id and an ownership miss; callers must
	// not be able to tell the two apart.
	ErrNotFound       = errors.New("blog not found")
	ErrDuplicateTitle = errors.New("blog title already exists")
	ErrNoFields       = errors.New("no fields to update")
)
