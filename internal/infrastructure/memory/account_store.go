package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// AccountStore keeps accounts in process memory. It backs local runs and tests.
type AccountStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Account
	byEmail map[string]string // email -> accountID
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[string]domain.Account),
		byEmail: make(map[string]string),
	}
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return s.byID[id], nil
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return a, nil
}

func (s *AccountStore) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	a.Email = domain.NormalizeEmail(a.Email)
	if s.emailTakenLocked(a.Email, a.ID) {
		return domain.Account{}, domain.ErrEmailInUse()
	}
	if _, exists := s.byID[a.ID]; exists {
		return domain.Account{}, domain.ErrVersionConflict()
	}

	a.Version = 1
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a, nil
}

// Save replaces the record only if a.Version matches the stored version.
func (s *AccountStore) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[a.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	if cur.Version != a.Version {
		return domain.Account{}, domain.ErrVersionConflict()
	}
	a.Email = domain.NormalizeEmail(a.Email)
	if s.emailTakenLocked(a.Email, a.ID) {
		return domain.Account{}, domain.ErrEmailInUse()
	}

	if cur.Email != a.Email {
		delete(s.byEmail, cur.Email)
	}
	a.Version = cur.Version + 1
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a, nil
}

// List orders by creation time, then id, so pages are stable.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	s.mu.RLock()
	all := make([]domain.Account, 0, len(s.byID))
	for _, a := range s.byID {
		all = append(all, a)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Account{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (s *AccountStore) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.byID {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *AccountStore) emailTakenLocked(email, ownerID string) bool {
	id, ok := s.byEmail[email]
	return ok && id != ownerID
}
