package store

import (
	"context"
	"sync"

	"github.com/ubuygold/keygate/internal/model"
)

// MemoryStore keeps records in process memory only. Everything is lost on
// restart, which suits short-lived function instances.
type MemoryStore struct {
	mu   sync.Mutex
	keys []model.KeyRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: []model.KeyRecord{}}
}

func (m *MemoryStore) LoadAll(context.Context) ([]model.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.keys), nil
}

func (m *MemoryStore) FindByKey(_ context.Context, key string) (*model.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := indexOf(m.keys, key); i >= 0 {
		rec := m.keys[i].Clone()
		return &rec, nil
	}
	return nil, nil
}

func (m *MemoryStore) Insert(_ context.Context, rec model.KeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if indexOf(m.keys, rec.Key) >= 0 {
		return ErrDuplicateKey
	}
	m.keys = append(m.keys, rec.Clone())
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = without(m.keys, key)
	return nil
}

func (m *MemoryStore) Mutate(_ context.Context, key string, fn Updater) (model.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := indexOf(m.keys, key)
	if i < 0 {
		return model.KeyRecord{}, ErrNotFound
	}
	rec, err := apply(m.keys[i], fn)
	if err != nil {
		return model.KeyRecord{}, err
	}
	m.keys[i] = rec
	return rec.Clone(), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
