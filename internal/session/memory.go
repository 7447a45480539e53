package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process; they are lost on restart.
type MemoryStore struct {
	items *cache.Cache
	now   func() time.Time
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		items: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	ttl := s.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return ErrExpired
	}
	m.items.Set(s.ID, s, ttl)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	s := v.(Session)
	if s.Expired(m.now()) {
		m.items.Delete(id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

func (m *MemoryStore) Count() int {
	return m.items.ItemCount()
}
