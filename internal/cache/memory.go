package cache

import "sync"

// MemoryBackend holds entries in process memory. A zero quota means no limit.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
	quota   int
	used    int
}

// NewMemoryBackend creates an empty in-memory backend limited to quota bytes
// of keys plus values.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string][]byte),
		quota:   quota,
	}
}

func (m *MemoryBackend) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used
	if old, ok := m.entries[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = stored
	m.used = used
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	m.used = 0
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
