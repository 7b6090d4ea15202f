package repositories

import (
	"context"
	"strings"
	"sync"

	"github.com/snapreel/backend/internal/models"
)

// MemoryUserRepository keeps accounts in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	if r.conflictLocked(user) {
		return ErrConflict
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) FindByGoogleSubject(_ context.Context, subject string) (models.User, error) {
	if subject == "" {
		return models.User{}, ErrNotFound
	}
	return r.find(func(u models.User) bool { return u.GoogleSub == subject })
}

func (r *MemoryUserRepository) Update(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	if r.conflictLocked(user) {
		return ErrConflict
	}
	r.users[user.ID] = user
	return nil
}

// conflictLocked reports whether another user already holds user's email or Google subject.
func (r *MemoryUserRepository) conflictLocked(user models.User) bool {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return true
		}
		if user.GoogleSub != "" && existing.GoogleSub == user.GoogleSub {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) find(match func(models.User) bool) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

var _ UserRepository = (*MemoryUserRepository)(nil)
