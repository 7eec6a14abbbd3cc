// connections.go manages saved connection profiles.
//
// Profiles live in the client KV store under the "dbConnections" key as a
// JSON array, so users can quickly reconnect without retyping the server
// and database. Credentials are never saved.
package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/storage"
)

// Connection is a named, saveable connection profile.
type Connection struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Server   string `json:"server"`
	Database string `json:"database"`
}

// ConnectionStore manages saved connections in a storage.KV. It is safe
// for concurrent use.
type ConnectionStore struct {
	kv storage.KV

	mu   sync.Mutex
	list []Connection
}

// NewConnectionStore creates a store, loading any profiles already saved.
// A corrupt value is reported; callers may still use the empty store.
func NewConnectionStore(kv storage.KV) (*ConnectionStore, error) {
	store := &ConnectionStore{kv: kv}

	raw, ok, err := kv.Get(storage.KeyConnections)
	if err != nil {
		return store, err
	}
	if !ok || raw == "" {
		return store, nil
	}
	if err := json.Unmarshal([]byte(raw), &store.list); err != nil {
		store.list = nil
		return store, fmt.Errorf("parse connections: %w", err)
	}
	return store, nil
}

// List returns a copy of the saved connections in insertion order.
func (s *ConnectionStore) List() []Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list)
}

// Save writes all connections back to the store.
func (s *ConnectionStore) Save() error {
	s.mu.Lock()
	list := s.list
	if list == nil {
		list = []Connection{}
	}
	data, err := json.Marshal(list)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.kv.Set(storage.KeyConnections, string(data))
}

// Add appends a new profile with a millisecond timestamp ID, or updates the
// server and database of the profile with the same name.
func (s *ConnectionStore) Add(name, server, database string) Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.list {
		if c.Name == name {
			s.list[i].Server = server
			s.list[i].Database = database
			return s.list[i]
		}
	}
	// Profiles added within the same millisecond still get distinct IDs.
	id := time.Now().UnixMilli()
	for slices.ContainsFunc(s.list, func(c Connection) bool { return c.ID == strconv.FormatInt(id, 10) }) {
		id++
	}
	conn := Connection{
		ID:       strconv.FormatInt(id, 10),
		Name:     name,
		Server:   server,
		Database: database,
	}
	s.list = append(s.list, conn)
	return conn
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.list {
		if c.ID == id {
			s.list = slices.Delete(s.list, i, i+1)
			return true
		}
	}
	return false
}

// Get retrieves a connection by name.
func (s *ConnectionStore) Get(name string) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.list {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// Has reports whether a profile with name exists.
func (s *ConnectionStore) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}
