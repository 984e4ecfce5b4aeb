// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"sync"
	"time"
)

type memKey struct {
	scope Scope
	name  string
}

// Memory is an in-memory variable store. It keeps version history like the
// SQLite store so both behave the same under test.
type Memory struct {
	mu       sync.RWMutex
	data     map[memKey][]VersionEntry
	metadata map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[memKey][]VersionEntry),
		metadata: make(map[string]string),
	}
}

// Get retrieves the current value of a variable.
func (m *Memory) Get(scope Scope, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.data[memKey{scope, name}]
	if len(versions) == 0 {
		return "", false, nil
	}
	return versions[len(versions)-1].Value, true, nil
}

// Set stores a new version unless the value is unchanged.
func (m *Memory) Set(scope Scope, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{scope, name}
	versions := m.data[k]
	if n := len(versions); n > 0 && versions[n-1].Value == value {
		return nil
	}
	m.data[k] = append(versions, VersionEntry{
		Version: len(versions) + 1,
		Value:   value,
		Ts:      time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// Delete removes a variable and its history.
func (m *Memory) Delete(scope Scope, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memKey{scope, name})
	return nil
}

// List returns the current values in scope.
func (m *Memory) List(scope Scope) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for k, versions := range m.data {
		if k.scope == scope && len(versions) > 0 {
			out[k.name] = versions[len(versions)-1].Value
		}
	}
	return out, nil
}

// GetHistory returns versions newest first.
func (m *Memory) GetHistory(scope Scope, name string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.data[memKey{scope, name}]
	if len(versions) == 0 {
		return nil, nil
	}
	var out []VersionEntry
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, versions[i])
	}
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// GetMetadata retrieves a metadata value by key.
func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// SetMetadata stores a metadata value by key.
func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}

