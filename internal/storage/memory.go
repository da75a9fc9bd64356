package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps records in process memory. Each method is atomic with
// respect to the others, mirroring single-document atomicity of a document
// store, and the short endpoint index is unique.
type MemoryStorage struct {
	mu         sync.RWMutex
	records    map[string]*URLRecord
	byShort    map[string]string
	users      map[string]*User
	categories map[string]*Category
}

func CreateMemoryStorage() (*MemoryStorage, error) {
	return &MemoryStorage{
		records:    make(map[string]*URLRecord),
		byShort:    make(map[string]string),
		users:      make(map[string]*User),
		categories: make(map[string]*Category),
	}, nil
}

func (m *MemoryStorage) Write(_ context.Context, r URLRecord) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeLocked(r)
}

// WriteCounted stores r and increments its owner's counter, and its
// category's counter when r is scoped, under one lock. A missing category
// stores nothing and returns ErrNotFound.
func (m *MemoryStorage) WriteCounted(_ context.Context, r URLRecord) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c *Category
	if r.Suborg != "" {
		var exists bool
		if c, exists = m.categories[r.Suborg]; !exists {
			return nil, ErrNotFound
		}
	}

	written, err := m.writeLocked(r)
	if err != nil {
		return nil, err
	}

	m.userLocked(r.UserID).URLCount++
	if c != nil {
		c.URLCount++
	}
	return written, nil
}

func (m *MemoryStorage) writeLocked(r URLRecord) (*URLRecord, error) {
	if _, exists := m.byShort[r.Short]; exists {
		return nil, ErrConflict
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := m.records[r.ID]; exists {
		return nil, ErrConflict
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	stored := r
	m.records[r.ID] = &stored
	m.byShort[r.Short] = r.ID

	return &r, nil
}

func (m *MemoryStorage) Read(_ context.Context) ([]URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]URLRecord, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, *r)
	}
	sortRecords(result)

	return result, nil
}

func (m *MemoryStorage) ExistsShort(_ context.Context, short string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.byShort[short]
	return exists, nil
}

func (m *MemoryStorage) findByShort(short string) (*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byShort[short]
	if !exists {
		return nil, ErrNotFound
	}
	r := *m.records[id]
	return &r, nil
}

// FindRedirect returns the record behind short unless it is blacklisted.
func (m *MemoryStorage) FindRedirect(_ context.Context, short string) (*URLRecord, error) {
	r, err := m.findByShort(short)
	if err != nil {
		return nil, err
	}
	if r.Blacklisted {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStorage) FindByID(_ context.Context, id string) (*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	found := *r
	return &found, nil
}

func (m *MemoryStorage) FindByOwner(_ context.Context, userID, suborg string) ([]URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]URLRecord, 0)
	for _, r := range m.records {
		if r.UserID == userID && r.Suborg == suborg {
			result = append(result, *r)
		}
	}
	sortRecords(result)

	return result, nil
}

// Delete removes the record matching id, owner and suborg together.
func (m *MemoryStorage) Delete(_ context.Context, id, userID, suborg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteLocked(id, userID, suborg), nil
}

// DeleteCounted deletes like Delete and decrements the counters of a
// deleted record under the same lock. Counters never go below zero.
func (m *MemoryStorage) DeleteCounted(_ context.Context, id, userID, suborg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.deleteLocked(id, userID, suborg) {
		return false, nil
	}

	if u, exists := m.users[userID]; exists && u.URLCount > 0 {
		u.URLCount--
	}
	if c, exists := m.categories[suborg]; exists && c.URLCount > 0 {
		c.URLCount--
	}
	return true, nil
}

func (m *MemoryStorage) deleteLocked(id, userID, suborg string) bool {
	r, exists := m.records[id]
	if !exists || r.UserID != userID || r.Suborg != suborg {
		return false
	}
	delete(m.byShort, r.Short)
	delete(m.records, id)
	return true
}

func (m *MemoryStorage) SetBlacklisted(_ context.Context, id string, blacklisted bool) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	r.Blacklisted = blacklisted
	updated := *r
	return &updated, nil
}

func (m *MemoryStorage) UpdateShort(_ context.Context, id, short string) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	if owner, taken := m.byShort[short]; taken && owner != id {
		return nil, ErrConflict
	}
	delete(m.byShort, r.Short)
	r.Short = short
	m.byShort[short] = id

	updated := *r
	return &updated, nil
}

func (m *MemoryStorage) IncrementHits(_ context.Context, short string, at time.Time) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.byShort[short]
	if !exists {
		return nil, ErrNotFound
	}
	r := m.records[id]
	r.Hits++
	r.LastHitAt = at

	updated := *r
	return &updated, nil
}

// AdjustUserURLCount adds delta to the user's counter. A positive delta
// creates the user on first use.
func (m *MemoryStorage) AdjustUserURLCount(_ context.Context, userID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[userID]; !exists && delta < 0 {
		return ErrNotFound
	}
	m.userLocked(userID).URLCount += delta
	return nil
}

// userLocked returns the user, creating it with a zero counter if needed.
func (m *MemoryStorage) userLocked(userID string) *User {
	u, exists := m.users[userID]
	if !exists {
		u = &User{ID: userID, CreatedAt: time.Now()}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStorage) AdjustCategoryURLCount(_ context.Context, name string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.categories[name]
	if !exists {
		return ErrNotFound
	}
	c.URLCount += delta
	return nil
}

// ReconcileUserURLCount resets the user's counter to the number of records
// the user actually owns.
func (m *MemoryStorage) ReconcileUserURLCount(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, r := range m.records {
		if r.UserID == userID {
			count++
		}
	}

	m.userLocked(userID).URLCount = count

	return count, nil
}

func (m *MemoryStorage) ReconcileCategoryURLCount(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.categories[name]
	if !exists {
		return 0, ErrNotFound
	}

	var count int64
	for _, r := range m.records {
		if r.Suborg == name {
			count++
		}
	}
	c.URLCount = count

	return count, nil
}

func (m *MemoryStorage) FindUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, exists := m.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	found := *u
	return &found, nil
}

func (m *MemoryStorage) CreateCategory(_ context.Context, c Category) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[c.Name]; exists {
		return nil, ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.URLCount = 0

	stored := c
	m.categories[c.Name] = &stored

	return &c, nil
}

func (m *MemoryStorage) FindCategory(_ context.Context, name string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.categories[name]
	if !exists {
		return nil, ErrNotFound
	}
	found := *c
	return &found, nil
}

func (m *MemoryStorage) FindCategoriesByOwner(_ context.Context, ownerID string) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Category, 0)
	for _, c := range m.categories {
		if c.OwnerID == ownerID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

func (m *MemoryStorage) GetStats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make(map[string]struct{})
	for _, r := range m.records {
		if r.UserID != "" {
			owners[r.UserID] = struct{}{}
		}
	}

	return &Stats{URLs: len(m.records), Users: len(owners)}, nil
}

func (m *MemoryStorage) PingContext(_ context.Context) error {
	return errors.ErrUnsupported
}

func sortRecords(rs []URLRecord) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
