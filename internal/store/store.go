// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store provides the variable storage behind {{getvar}}, {{setvar}}
// and the .name / $name shorthand.
package store

import (
	"fmt"
	"strings"
)

// Scope selects the local (per chat) or global variable table.
type Scope string

const (
	Local  Scope = "local"
	Global Scope = "global"
)

// ParseScope parses "local" or "global".
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case Local:
		return Local, nil
	case Global:
		return Global, nil
	}
	return "", fmt.Errorf("unknown variable scope %q", s)
}

// Variables is the interface for variable persistence.
type Variables interface {
	// Get returns the value and whether the variable exists.
	Get(scope Scope, name string) (string, bool, error)
	// Set stores a value, overwriting any previous one.
	Set(scope Scope, name, value string) error
	// Delete removes a variable. Deleting a missing variable is not an error.
	Delete(scope Scope, name string) error
	// List returns a snapshot of every variable in scope.
	List(scope Scope) (map[string]string, error)
	// Close releases resources.
	Close() error
}

// VersionEntry is a single past value of a variable.
type VersionEntry struct {
	Version int
	Value   string
	Ts      string
}

// HistoryStore extends Variables with version history queries.
type HistoryStore interface {
	// GetHistory returns versions newest first. A limit of zero means all.
	GetHistory(scope Scope, name string, limit int) ([]VersionEntry, error)
}
