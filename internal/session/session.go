// Package session provides the stable identifier stamped on every event
// a client captures.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// StorageKey is the key the session id is persisted under.
const StorageKey = "session-id"

// Store is a persistent string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// Resolve returns the session id persisted in store, creating and
// persisting a new UUID when none exists. Store failures never fail the
// caller: a read failure yields a fresh id for this process only, and a
// write failure is logged.
func Resolve(ctx context.Context, store Store, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	id, ok, err := store.Get(ctx, StorageKey)
	if err != nil {
		logger.Warn("reading session id, using an ephemeral one", "error", err)
		return uuid.NewString()
	}
	if ok && id != "" {
		return id
	}

	id = uuid.NewString()
	if err := store.Set(ctx, StorageKey, id); err != nil {
		logger.Warn("persisting session id", "error", err)
	}
	return id
}

// MemoryStore is a Store scoped to the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
