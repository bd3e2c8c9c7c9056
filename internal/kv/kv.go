// Package kv defines the key-value storage port that backs client-side state
// and its process-local implementations.
package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is a flat string key-value store. Each call is atomic for its key;
// no multi-key transactions are offered.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or overwrites a key.
	Set(ctx context.Context, key, value string) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix in lexical order. An empty prefix lists all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Memory is an in-process Store. The zero value is ready to use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
