package session

import (
	"sync"

	"github.com/snapreel/backend/internal/models"
)

// AccountStore holds the current account. It has a single writer: the
// identity change subscription owned by Context. Everything else reads.
type AccountStore struct {
	mu      sync.RWMutex
	current *models.Account
	loading bool
	subs    map[int]func(*models.Account)
	nextSub int
}

func newAccountStore() *AccountStore {
	return &AccountStore{loading: true, subs: make(map[int]func(*models.Account))}
}

// Current returns a copy of the signed-in account, or nil.
func (s *AccountStore) Current() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAccount(s.current)
}

// Loading reports whether the first identity notification is still pending.
func (s *AccountStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Subscribe calls fn on every account change until the returned func is called.
func (s *AccountStore) Subscribe(fn func(*models.Account)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *AccountStore) set(account *models.Account) {
	s.mu.Lock()
	s.current = cloneAccount(account)
	s.loading = false
	subs := make([]func(*models.Account), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(cloneAccount(account))
	}
}

func cloneAccount(a *models.Account) *models.Account {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}
