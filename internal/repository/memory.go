package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// MemoryCaseRepository keeps cases in process. Stored values are cloned on every read and write.
type MemoryCaseRepository struct {
	mu    sync.RWMutex
	cases map[string]*domain.Case
}

// NewMemoryCaseRepository builds an empty in-process case store.
func NewMemoryCaseRepository() *MemoryCaseRepository {
	return &MemoryCaseRepository{cases: make(map[string]*domain.Case)}
}

func (r *MemoryCaseRepository) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.cases[c.ID] = c.Clone()
	return nil
}

func (r *MemoryCaseRepository) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.cases[c.ID]
	if !ok {
		return ErrNotFound
	}
	stored := c.Clone()
	if existing.HasThread() {
		stored.ThreadID = existing.ThreadID
	}
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	c.UpdatedAt = stored.UpdatedAt
	r.cases[c.ID] = stored
	return nil
}

func (r *MemoryCaseRepository) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryCaseRepository) FindByOwnerEmail(_ context.Context, email string) (*domain.Case, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *domain.Case
	for _, c := range r.cases {
		if c.OwnerEmail == nil || strings.ToLower(*c.OwnerEmail) != email {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

func (r *MemoryCaseRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Case, error) {
	return r.collect(func(c *domain.Case) bool { return c.OwnerID == ownerID }, byCreatedDesc), nil
}

func (r *MemoryCaseRepository) List(_ context.Context, filter CaseFilter) ([]domain.Case, int, error) {
	search := ""
	if filter.Search != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.Search))
	}
	all := r.collect(func(c *domain.Case) bool {
		if filter.Status != nil && c.Status != *filter.Status {
			return false
		}
		if search == "" {
			return true
		}
		for _, field := range []string{c.Store, c.Product, c.Description, domain.StringValue(c.OwnerEmail)} {
			if strings.Contains(strings.ToLower(field), search) {
				return true
			}
		}
		return false
	}, byCreatedDesc)

	limit, offset := clampPage(filter.Limit, filter.Offset, 20, 200)
	total := len(all)
	if offset >= total {
		return []domain.Case{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryCaseRepository) ListWithThread(_ context.Context, limit int) ([]domain.Case, error) {
	limit, _ = clampPage(limit, 0, 500, 500)
	items := r.collect(func(c *domain.Case) bool { return c.HasThread() }, func(a, b *domain.Case) bool {
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryCaseRepository) collect(match func(*domain.Case) bool, less func(a, b *domain.Case) bool) []domain.Case {
	r.mu.RLock()
	matched := make([]*domain.Case, 0, len(r.cases))
	for _, c := range r.cases {
		if match(c) {
			matched = append(matched, c.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if less(matched[i], matched[j]) {
			return true
		}
		if less(matched[j], matched[i]) {
			return false
		}
		return matched[i].ID < matched[j].ID
	})
	out := make([]domain.Case, 0, len(matched))
	for _, c := range matched {
		out = append(out, *c)
	}
	return out
}

func byCreatedDesc(a, b *domain.Case) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

// MemoryNotificationRepository keeps notifications in insertion order.
type MemoryNotificationRepository struct {
	mu    sync.RWMutex
	items []domain.Notification
}

// NewMemoryNotificationRepository builds an empty in-process notification store.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.items = append(r.items, *n)
	return nil
}

func (r *MemoryNotificationRepository) ListUnseen(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 25
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Notification
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		n := r.items[i]
		if n.UserID == userID && !n.Seen {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *MemoryNotificationRepository) MarkSeen(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].UserID == userID {
			r.items[i].Seen = true
			return nil
		}
	}
	return ErrNotFound
}

// All returns every stored notification, oldest first.
func (r *MemoryNotificationRepository) All() []domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Notification(nil), r.items...)
}

// MemoryStoreRepository is a read-mostly store directory.
type MemoryStoreRepository struct {
	mu     sync.RWMutex
	stores map[string]domain.Store
}

// NewMemoryStoreRepository seeds the directory with stores.
func NewMemoryStoreRepository(stores ...domain.Store) *MemoryStoreRepository {
	r := &MemoryStoreRepository{stores: make(map[string]domain.Store)}
	for _, s := range stores {
		r.Put(s)
	}
	return r
}

// Put inserts or replaces a store.
func (r *MemoryStoreRepository) Put(s domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.StoreID] = s
}

func (r *MemoryStoreRepository) GetByStoreID(_ context.Context, storeID string) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[storeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryStoreRepository) GetByName(_ context.Context, name string) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if strings.EqualFold(s.Name, name) {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// MemoryUserRepository keeps accounts in process.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository builds an empty account store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) UpdateDeviceToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.DeviceToken = &token
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

var (
	_ CaseRepository         = (*MemoryCaseRepository)(nil)
	_ NotificationRepository = (*MemoryNotificationRepository)(nil)
	_ StoreRepository        = (*MemoryStoreRepository)(nil)
	_ UserRepository         = (*MemoryUserRepository)(nil)
)
