package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore used by tests and the
// single-binary dev mode. A single mutex serializes every operation, so a
// Transact can never observe a concurrent write mid-flight.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, path string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := path + "/"
	children := make(map[string][]byte)
	for k, v := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		child := strings.TrimPrefix(k, prefix)
		if strings.Contains(child, "/") {
			continue
		}
		out := make([]byte, len(v))
		copy(out, v)
		children[child] = out
	}
	return children, nil
}

func (m *MemoryStore) AtomicUpdate(ctx context.Context, updates map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apply(updates)
	return nil
}

func (m *MemoryStore) Transact(ctx context.Context, paths []string, fn UpdateFn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if v, ok := m.data[p]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			current[p] = cp
		}
	}

	updates, err := fn(current)
	if err != nil {
		return err
	}
	m.apply(updates)
	return nil
}

func (m *MemoryStore) NewKey(parentPath string) string {
	return uuid.NewString()
}

func (m *MemoryStore) apply(updates map[string][]byte) {
	for k, v := range updates {
		if v == nil {
			delete(m.data, k)
			continue
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		m.data[k] = cp
	}
}
