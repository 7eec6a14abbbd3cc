// Package storage is the client-side persistent key/value store.
//
// It holds the few things that outlive a session: the backend session
// token and the saved connection profiles. Values are opaque strings and
// writers always overwrite whole values; the last writer wins.
package storage

import (
	"errors"
	"sync"
)

// Well-known keys.
const (
	KeyToken       = "mcpToken"
	KeyConnections = "dbConnections"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage closed")

// KV is the process-wide key/value store.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Memory is an in-process KV, used when no state file is configured and
// in tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

var _ KV = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
