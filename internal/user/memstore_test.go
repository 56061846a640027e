package user

import (
	"context"
	"sort"
	"sync"
)

// memStore is an in-memory Store used by service and handler tests.
type memStore struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]User)}
}

func (m *memStore) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.users[u.ID] = u

	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}

	return u, nil
}

func (m *memStore) GetByIdentifier(_ context.Context, identifier string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}

	return User{}, ErrNotFound
}

func (m *memStore) GetByRefreshToken(_ context.Context, refreshToken string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.RefreshToken != nil && *u.RefreshToken == refreshToken {
			return u, nil
		}
	}

	return User{}, ErrNotFound
}

func (m *memStore) SetRefreshToken(_ context.Context, id, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = &refreshToken
	m.users[id] = u

	return nil
}

func (m *memStore) ClearRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = nil
	m.users[id] = u

	return nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, oldToken, newToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken {
			u.RefreshToken = &newToken
			m.users[id] = u
			return id, nil
		}
	}

	return "", ErrNotFound
}

func (m *memStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[id] = u

	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, id string, changes ProfileChanges) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}

	for otherID, other := range m.users {
		if otherID == id {
			continue
		}
		if changes.Username != nil && other.Username == *changes.Username {
			return User{}, ErrConflict
		}
		if changes.Email != nil && other.Email == *changes.Email {
			return User{}, ErrConflict
		}
	}

	if changes.Name != nil {
		u.Name = *changes.Name
	}
	if changes.Username != nil {
		u.Username = *changes.Username
	}
	if changes.Email != nil {
		u.Email = *changes.Email
	}
	m.users[id] = u

	return u, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)

	return nil
}

func (m *memStore) List(_ context.Context, page, perPage int) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if u.Role == "user" {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	start := (page - 1) * perPage
	if start >= len(all) {
		return []User{}, len(all), nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}

	return all[start:end], len(all), nil
}

func (m *memStore) HasAdmin(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Role == "admin" {
			return true, nil
		}
	}

	return false, nil
}
