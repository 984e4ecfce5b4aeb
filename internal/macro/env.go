// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"errors"
	"fmt"
	"hash/fnv"
	"maps"
	"strings"
	"time"
)

// Names holds participant names.
type Names struct {
	User          string
	Char          string
	Group         string // Comma-separated group member names
	GroupNotMuted string
	NotChar       string // Everyone except the current character
}

// CharIfNotGroup returns the group members in a group chat, else the character.
func (n Names) CharIfNotGroup() string {
	if n.Group != "" {
		return n.Group
	}
	return n.Char
}

// Character holds character-card field values.
type Character struct {
	Description    string
	Personality    string
	Scenario       string
	Persona        string
	MesExamples    string
	MesExamplesRaw string
	SystemPrompt   string
	Prompt         string // Character main prompt override
	Instruction    string // Post-history instructions
	DepthPrompt    string
	CreatorNotes   string
	Version        string
}

// System holds backend information.
type System struct {
	Model     string
	MaxPrompt int
}

// Message is one chat message visible to chat-inspection macros.
type Message struct {
	Name       string
	Text       string
	IsUser     bool
	IsSystem   bool
	SwipeID    int
	SwipeCount int
	SendDate   time.Time
}

// Env is the context of one top-level evaluation. Build it, then let the
// engine freeze it; a frozen Env is shared by every nested resolution and
// must not be modified.
type Env struct {
	Names
	Character Character
	System    System
	Chat      []Message
	ChatID    string
	Original  string // Original prompt text for {{original}}
	Input     string // Pending user input for {{input}}

	// FirstIncludedMessageID is the index of the oldest message in the
	// prompt, or -1 when unknown.
	FirstIncludedMessageID int

	// Extra holds free-form values for dynamic or third-party macros.
	Extra map[string]string

	// Dynamic macros live only for one evaluation. Keys are case-insensitive.
	Dynamic map[string]DynamicMacro

	// Postprocess, when set, is applied by macros that emit card text.
	Postprocess func(string) string

	// Now and Random may be replaced for deterministic output.
	Now    func() time.Time
	Random func(n int) int

	content     string
	contentHash uint64
	dynamicDefs map[string]*Definition
	frozen      bool
}

// Content returns the original top-level input text.
func (e *Env) Content() string { return e.content }

// ContentHash returns the FNV-1a hash of Content.
func (e *Env) ContentHash() uint64 { return e.contentHash }

// Frozen reports whether the Env has been frozen.
func (e *Env) Frozen() bool { return e.frozen }

// Time returns the current time from Now, or the wall clock.
func (e *Env) Time() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Macro returns the frozen definition of a per-evaluation macro, or nil.
func (e *Env) Macro(name string) *Definition {
	if e == nil {
		return nil
	}
	return e.dynamicDefs[strings.ToLower(name)]
}

// Freeze returns a frozen copy of e for evaluating content. Maps are copied
// and dynamic macros are turned into definitions once, here. Dynamic macros
// that fail validation are skipped and reported in the returned error.
func (e *Env) Freeze(content string) (*Env, error) {
	if e == nil {
		e = &Env{FirstIncludedMessageID: -1}
	}
	if e.frozen {
		return e, nil
	}

	f := *e
	f.Chat = append([]Message(nil), e.Chat...)
	f.Extra = maps.Clone(e.Extra)
	f.Dynamic = maps.Clone(e.Dynamic)
	f.content = content
	h := fnv.New64a()
	h.Write([]byte(content))
	f.contentHash = h.Sum64()

	var errs []error
	f.dynamicDefs = make(map[string]*Definition, len(e.Dynamic))
	for name, dm := range e.Dynamic {
		def, err := dm.definition(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("dynamic macro %q: %w", name, err))
			continue
		}
		def.Source = Source{Name: "dynamic"}
		f.dynamicDefs[strings.ToLower(name)] = def
		for _, a := range def.Aliases {
			f.dynamicDefs[strings.ToLower(a.Name)] = def.aliasEntry(a)
		}
	}
	f.frozen = true
	return &f, errors.Join(errs...)
}

// DynamicKind tags the shape of a dynamic macro.
type DynamicKind int

const (
	DynamicString DynamicKind = iota
	DynamicHandler
	DynamicDefinition
)

// DynamicMacro is a macro registered for a single evaluation. Construct it
// with StringMacro, HandlerMacro or DefinitionMacro.
type DynamicMacro struct {
	kind    DynamicKind
	text    string
	handler Handler
	options Options
}

// StringMacro is a dynamic macro that always resolves to text.
func StringMacro(text string) DynamicMacro {
	return DynamicMacro{kind: DynamicString, text: text}
}

// HandlerMacro is a dynamic macro backed by a handler that accepts any
// arguments.
func HandlerMacro(h Handler) DynamicMacro {
	return DynamicMacro{kind: DynamicHandler, handler: h}
}

// DefinitionMacro is a dynamic macro with full registration options.
func DefinitionMacro(opts Options) DynamicMacro {
	return DynamicMacro{kind: DynamicDefinition, options: opts}
}

// Kind returns the variant tag.
func (d DynamicMacro) Kind() DynamicKind { return d.kind }

func (d DynamicMacro) definition(name string) (*Definition, error) {
	switch d.kind {
	case DynamicString:
		text := d.text
		return NewDefinition(name, Options{
			Category: CategoryDynamic,
			List:     &ListSpec{},
			Lenient:  true,
			Handler:  func(*Context) (any, error) { return text, nil },
		})
	case DynamicHandler:
		if d.handler == nil {
			return nil, fmt.Errorf("%w: nil handler", ErrInvalidDefinition)
		}
		return NewDefinition(name, Options{
			Category: CategoryDynamic,
			List:     &ListSpec{},
			Lenient:  true,
			Handler:  d.handler,
		})
	default:
		opts := d.options
		if opts.Category == "" {
			opts.Category = CategoryDynamic
		}
		return NewDefinition(name, opts)
	}
}
