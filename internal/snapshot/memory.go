package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryEntry struct {
	data    []byte
	version int64
}

// MemoryStore keeps snapshots in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(_ context.Context, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = memoryEntry{data: data, version: version}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string, w io.Writer) (int64, error) {
	m.mu.RLock()
	entry, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if _, err := io.Copy(w, bytes.NewReader(entry.data)); err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return entry.version, nil
}

func (m *MemoryStore) Version(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[name].version, nil
}

var _ Store = (*MemoryStore)(nil)
