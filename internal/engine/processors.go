// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package engine

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

// ProcessorFunc rewrites text before parsing or after evaluation.
type ProcessorFunc func(text string, env *macro.Env) string

// Processor is one step of a processor chain. Lower priorities run first;
// equal priorities run in insertion order. Built-in processors use 0 to 99
// and a zero priority on a user processor means DefaultPriority.
type Processor struct {
	ID       string
	Priority int
	Fn       ProcessorFunc

	seq int
}

// DefaultPriority is assigned to user processors registered without one.
const DefaultPriority = 100

type stage int

const (
	stagePre stage = iota
	stagePost
)

var (
	legacyTime   = regexp.MustCompile(`(?i)\{\{time_(UTC[+-]\d+)\}\}`)
	legacyUser   = regexp.MustCompile(`(?i)<USER>`)
	legacyChar   = regexp.MustCompile(`(?i)<(?:BOT|CHAR)>`)
	legacyGroup  = regexp.MustCompile(`(?i)<GROUP>`)
	legacyCharIf = regexp.MustCompile(`(?i)<CHARIFNOTGROUP>`)
	trimMarker   = regexp.MustCompile(`(?:\r?\n)*\{\{trim\}\}(?:\r?\n)*`)
)

var braceUnescaper = strings.NewReplacer(`\{`, "{", `\}`, "}")

func (e *Engine) installBuiltins() {
	builtins := []struct {
		stage stage
		p     Processor
	}{
		{stagePre, Processor{ID: "legacy-time", Priority: 10, Fn: func(s string, _ *macro.Env) string {
			return legacyTime.ReplaceAllString(s, "{{time::$1}}")
		}}},
		{stagePre, Processor{ID: "legacy-tags", Priority: 20, Fn: func(s string, _ *macro.Env) string {
			if !strings.Contains(s, "<") {
				return s
			}
			s = legacyCharIf.ReplaceAllString(s, "{{charIfNotGroup}}")
			s = legacyUser.ReplaceAllString(s, "{{user}}")
			s = legacyChar.ReplaceAllString(s, "{{char}}")
			return legacyGroup.ReplaceAllString(s, "{{group}}")
		}}},
		{stagePost, Processor{ID: "strip-else", Priority: 10, Fn: func(s string, _ *macro.Env) string {
			return strings.ReplaceAll(s, macro.ElseMarker, "")
		}}},
		{stagePost, Processor{ID: "trim", Priority: 20, Fn: func(s string, _ *macro.Env) string {
			return trimMarker.ReplaceAllString(s, "")
		}}},
		{stagePost, Processor{ID: "unescape-braces", Priority: 90, Fn: func(s string, _ *macro.Env) string {
			return braceUnescaper.Replace(s)
		}}},
	}
	for _, b := range builtins {
		e.add(b.stage, b.p, true)
	}
}

// AddPreProcessor registers a processor that runs before parsing. A
// processor with the same ID is replaced.
func (e *Engine) AddPreProcessor(p Processor) error {
	return e.add(stagePre, p, false)
}

// AddPostProcessor registers a processor that runs after evaluation.
func (e *Engine) AddPostProcessor(p Processor) error {
	return e.add(stagePost, p, false)
}

func (e *Engine) add(st stage, p Processor, builtin bool) error {
	if p.ID == "" {
		return errors.New("processor id is required")
	}
	if p.Fn == nil {
		return errors.New("processor function is required")
	}
	if !builtin && p.Priority == 0 {
		p.Priority = DefaultPriority
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(p.ID)
	e.seq++
	p.seq = e.seq
	list := &e.pre
	if st == stagePost {
		list = &e.post
	}
	*list = append(*list, p)
	sort.SliceStable(*list, func(i, j int) bool {
		a, b := (*list)[i], (*list)[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.seq < b.seq
	})
	return nil
}

// RemoveProcessor removes the processor with the given ID from either chain.
func (e *Engine) RemoveProcessor(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(id)
}

func (e *Engine) removeLocked(id string) bool {
	removed := false
	for _, list := range []*[]Processor{&e.pre, &e.post} {
		for i, p := range *list {
			if p.ID == id {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				removed = true
				break
			}
		}
	}
	return removed
}

// PreProcessors returns the pre-processor chain in run order.
func (e *Engine) PreProcessors() []Processor { return e.processors(stagePre) }

// PostProcessors returns the post-processor chain in run order.
func (e *Engine) PostProcessors() []Processor { return e.processors(stagePost) }

func (e *Engine) processors(st stage) []Processor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if st == stagePost {
		return append([]Processor(nil), e.post...)
	}
	return append([]Processor(nil), e.pre...)
}

func (e *Engine) runProcessors(chain []Processor, text string, env *macro.Env) string {
	for _, p := range chain {
		text = p.Fn(text, env)
	}
	return text
}
