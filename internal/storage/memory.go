package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	closed bool
}

func newMemory() *memoryStore {
	return &memoryStore{data: map[string]map[string]string{}}
}

func (m *memoryStore) all(ctx context.Context) (map[string]map[string]string, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return cloneAll(m.data), nil
}

func (m *memoryStore) get(ctx context.Context, id string) (map[string]string, bool, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	f, ok := m.data[id]
	if !ok {
		return nil, false, nil
	}
	return cloneFields(f), true, nil
}

func (m *memoryStore) set(ctx context.Context, id, field, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	applyField(m.data, id, field, value)
	return nil
}

func (m *memoryStore) close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func applyField(data map[string]map[string]string, id, field, value string) {
	f := data[id]
	if f == nil {
		f = map[string]string{}
		data[id] = f
	}
	f[field] = value
}

func cloneFields(f map[string]string) map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func cloneAll(data map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(data))
	for id, f := range data {
		out[id] = cloneFields(f)
	}
	return out
}
