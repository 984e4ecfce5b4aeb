// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
)

// Registry is a thread-safe, case-insensitive table of macro definitions.
// Aliases are stored as their own entries pointing back to the primary.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		defs:   make(map[string]*Definition),
		logger: diag.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and stores a macro. Invalid definitions are logged and
// returned as an error without touching existing entries. Registering an
// existing name replaces it and drops its old aliases.
func (r *Registry) Register(name string, opts Options) (*Definition, error) {
	def, err := NewDefinition(name, opts)
	if err != nil {
		r.logger.Error("macro registration failed", "macro", name, "err", err)
		return nil, err
	}
	if opts.Source == nil {
		def.Source = CallerSource(1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(def.Name)
	if old, ok := r.defs[key]; ok {
		r.logger.Warn("macro re-registered", "macro", def.Name, "previous", old.Primary())
		if old.IsAlias() {
			r.removeAliasLocked(old.AliasOf, old.Name)
		} else {
			r.removeLocked(old)
		}
	}
	r.defs[key] = def
	var kept []Alias
	for _, a := range def.Aliases {
		if r.claimAliasLocked(def, a) {
			kept = append(kept, a)
		}
	}
	def.Aliases = kept
	return def, nil
}

// RegisterAlias adds an alias to an already registered macro. It reports
// false if the target is unknown, the alias name is invalid or the name
// belongs to another macro. An alias of another macro is moved.
func (r *Registry) RegisterAlias(target, alias string, visible bool) bool {
	if !ValidName(alias) {
		r.logger.Error("invalid macro alias", "alias", alias, "macro", target)
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[strings.ToLower(target)]
	if !ok {
		r.logger.Error("alias target not registered", "alias", alias, "macro", target)
		return false
	}
	if def.IsAlias() {
		def = r.defs[strings.ToLower(def.AliasOf)]
	}
	a := Alias{Name: alias, Visible: visible}
	if !r.claimAliasLocked(def, a) {
		return false
	}
	def.Aliases = append(slices.DeleteFunc(slices.Clone(def.Aliases), func(x Alias) bool {
		return strings.EqualFold(x.Name, alias)
	}), a)
	return true
}

// claimAliasLocked points alias a at def. A primary macro is never
// overwritten by an alias.
func (r *Registry) claimAliasLocked(def *Definition, a Alias) bool {
	akey := strings.ToLower(a.Name)
	if prev, ok := r.defs[akey]; ok {
		switch {
		case !prev.IsAlias():
			r.logger.Error("macro alias conflicts with a registered macro", "alias", a.Name, "macro", def.Name)
			return false
		case !strings.EqualFold(prev.AliasOf, def.Name):
			r.logger.Warn("macro alias shadows existing entry", "alias", a.Name, "macro", def.Name, "previous", prev.Primary())
			r.removeAliasLocked(prev.AliasOf, prev.Name)
		}
	}
	r.defs[akey] = def.aliasEntry(a)
	return true
}

// Unregister removes a macro with all of its aliases. Given an alias, only
// the alias is removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[strings.ToLower(name)]
	if !ok {
		return false
	}
	if def.IsAlias() {
		r.removeAliasLocked(def.AliasOf, def.Name)
		return true
	}
	r.removeLocked(def)
	return true
}

func (r *Registry) removeLocked(def *Definition) {
	delete(r.defs, strings.ToLower(def.Name))
	for _, a := range def.Aliases {
		akey := strings.ToLower(a.Name)
		if e, ok := r.defs[akey]; ok && strings.EqualFold(e.AliasOf, def.Name) {
			delete(r.defs, akey)
		}
	}
}

func (r *Registry) removeAliasLocked(primary, alias string) {
	delete(r.defs, strings.ToLower(alias))
	if p, ok := r.defs[strings.ToLower(primary)]; ok {
		p.Aliases = slices.DeleteFunc(slices.Clone(p.Aliases), func(a Alias) bool {
			return strings.EqualFold(a.Name, alias)
		})
	}
}

// Has reports whether name or an alias is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[strings.ToLower(name)]
	return ok
}

// Get returns the entry for name, which may be an alias entry, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[strings.ToLower(name)]
}

// GetPrimary returns the primary definition for name, following aliases.
func (r *Registry) GetPrimary(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(name)]
	if !ok {
		return nil
	}
	if def.IsAlias() {
		return r.defs[strings.ToLower(def.AliasOf)]
	}
	return def
}

// ListOptions filters All.
type ListOptions struct {
	ExcludeAliases       bool
	ExcludeHiddenAliases bool
	Category             Category
}

// All returns the registered entries sorted by name.
func (r *Registry) All(opts ListOptions) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		if def.IsAlias() && (opts.ExcludeAliases || (opts.ExcludeHiddenAliases && !def.AliasVisible)) {
			continue
		}
		if opts.Category != "" && def.Category != opts.Category {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Categories returns the categories in use, sorted.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Category]bool)
	for _, def := range r.defs {
		seen[def.Category] = true
	}
	out := make([]Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Suggest returns up to limit registered names close to name: subsequence
// matches ranked by distance first, then names within two edits.
func (r *Registry) Suggest(name string, limit int) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] && !strings.EqualFold(s, name) {
			seen[s] = true
			out = append(out, s)
		}
	}

	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)
	for _, rk := range ranks {
		add(rk.Target)
	}

	lower := strings.ToLower(name)
	for _, n := range names {
		if fuzzy.LevenshteinDistance(lower, strings.ToLower(n)) <= 2 {
			add(n)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Lookup resolves name against the env's dynamic macros first, then the
// registry.
func (r *Registry) Lookup(env *Env, name string) *Definition {
	if def := env.Macro(name); def != nil {
		return def
	}
	return r.Get(name)
}
