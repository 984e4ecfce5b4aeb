// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval walks a parsed document and resolves its macros.
//
// Text is copied through unchanged. Each macro is resolved in document
// order: its arguments are evaluated first (unless the definition delays
// them), an opening tag is paired with its closing tag when the definition
// can take the enclosed content as one more argument, and the call is then
// executed through the registry. A macro that cannot be resolved is left in
// the output as written, with any nested macros still resolved.
//
// Every call carries the global offset of its opening braces so that
// seeded macros such as {{pick}} are stable for a given position in the
// top-level input.
package eval

import (
	"log/slog"
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/parser"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// DefaultMaxDepth bounds nested resolution.
const DefaultMaxDepth = 64

// Pipeline evaluates text found at offset in the top-level input. Handlers
// reach it through Context.Resolve. The engine installs its processor chain
// here; without one the walker itself is used.
type Pipeline func(text string, env *macro.Env, offset, depth int) string

// Evaluator resolves macros in parsed documents.
type Evaluator struct {
	registry *macro.Registry
	vars     store.Variables
	logger   *slog.Logger
	maxDepth int
	pipeline Pipeline
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithVariables sets the variable store used by the shorthand syntax.
func WithVariables(v store.Variables) Option {
	return func(e *Evaluator) { e.vars = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxDepth sets the nesting limit. Values below one keep the default.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithPipeline sets the function behind Context.Resolve.
func WithPipeline(p Pipeline) Option {
	return func(e *Evaluator) { e.pipeline = p }
}

// New creates an Evaluator over the given registry.
func New(reg *macro.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: reg,
		logger:   diag.Discard(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.vars == nil {
		e.vars = store.NewMemory()
	}
	if e.pipeline == nil {
		e.pipeline = e.Evaluate
	}
	return e
}

// SetPipeline replaces the function behind Context.Resolve.
func (e *Evaluator) SetPipeline(p Pipeline) {
	e.pipeline = p
}

// Variables returns the variable store.
func (e *Evaluator) Variables() store.Variables { return e.vars }

// MaxDepth returns the nesting limit.
func (e *Evaluator) MaxDepth() int { return e.maxDepth }

// Evaluate parses and resolves text located at offset.
func (e *Evaluator) Evaluate(text string, env *macro.Env, offset, depth int) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	if depth > e.maxDepth {
		diag.Runtime(e.logger).Warn("macro nesting too deep, leaving text unresolved", "depth", depth, "limit", e.maxDepth, "offset", offset)
		return text
	}
	res := parser.Parse(text)
	if res.HasErrors() {
		e.logger.Debug("nested text has syntax errors", "offset", offset, "lex", len(res.LexErrors), "parse", len(res.ParseErrors))
	}
	return e.EvaluateDocument(text, res.Document, env, offset, depth)
}

// EvaluateDocument resolves an already parsed document of src.
func (e *Evaluator) EvaluateDocument(src string, doc *cst.Document, env *macro.Env, offset, depth int) string {
	w := &walker{e: e, src: src, env: env, offset: offset, depth: depth}
	return w.items(doc.Items)
}

type walker struct {
	e      *Evaluator
	src    string
	env    *macro.Env
	offset int
	depth  int
}

// scopes holds the definition of every macro item and the index of the
// closing tag paired with each opener, or -1.
type scopes struct {
	defs    []*macro.Definition
	closers []int
}

func (w *walker) items(items []cst.Item) string {
	sc := w.pair(items)
	return w.run(items, sc, 0, len(items), cst.Span{Start: 0, End: len(w.src)})
}

// run resolves items[lo:hi]. Text is clipped to bounds. Openers whose
// closing tag lies outside the range are resolved inline.
func (w *walker) run(items []cst.Item, sc scopes, lo, hi int, bounds cst.Span) string {
	var sb strings.Builder
	for i := lo; i < hi; i++ {
		switch it := items[i].(type) {
		case *cst.Text:
			sb.WriteString(clip(it.Span, bounds).Text(w.src))
		case *cst.Macro:
			switch {
			case it.Recovered():
				sb.WriteString(w.reconstruct(it.Span, it.Nested()))
			case it.Var != nil:
				sb.WriteString(w.variable(it))
			case it.IsClosing():
				// Closers are consumed by their opener; this one has none.
				sb.WriteString(it.Span.Text(w.src))
			default:
				if k := sc.closers[i]; k > i && k < hi {
					sb.WriteString(w.macro(it, sc.defs[i], items, sc, i, k))
					i = k
					continue
				}
				sb.WriteString(w.macro(it, sc.defs[i], items, sc, i, -1))
			}
		}
	}
	return sb.String()
}

// pair looks up every macro once and matches openers with their closing
// tags in a single pass. Same-named openers nest.
func (w *walker) pair(items []cst.Item) scopes {
	sc := scopes{
		defs:    make([]*macro.Definition, len(items)),
		closers: make([]int, len(items)),
	}
	open := make(map[string][]int)
	for i, it := range items {
		sc.closers[i] = -1
		m, ok := it.(*cst.Macro)
		if !ok || m.Recovered() || m.Body == nil {
			continue
		}
		def := w.lookup(m)
		sc.defs[i] = def
		key := strings.ToLower(m.Name())
		if def != nil {
			key = strings.ToLower(def.Primary())
		}
		switch {
		case m.IsClosing():
			if stack := open[key]; len(stack) > 0 {
				sc.closers[stack[len(stack)-1]] = i
				open[key] = stack[:len(stack)-1]
			}
		case w.canOpen(m, def):
			open[key] = append(open[key], i)
		}
	}
	return sc
}

func (w *walker) lookup(m *cst.Macro) *macro.Definition {
	if m.Body == nil {
		return nil
	}
	return w.e.registry.Lookup(w.env, m.Name())
}

// canOpen reports whether m may start a scoped block.
func (w *walker) canOpen(m *cst.Macro, def *macro.Definition) bool {
	return def != nil && !m.Recovered() && m.Body != nil && !m.IsClosing() && def.AcceptsScope(len(m.Args()))
}

// macro resolves the macro at items[opener]. closer is the index of the
// matching closing tag of a scoped block, or -1.
func (w *walker) macro(m *cst.Macro, def *macro.Definition, items []cst.Item, sc scopes, opener, closer int) string {
	end := m.Span.End
	if closer >= 0 {
		end = items[closer].Pos().End
	}
	raw := w.src[m.Span.Start:end]

	if def == nil {
		w.e.logger.Debug("unknown macro", "macro", m.Name(), "offset", w.offset+m.Span.Start,
			"suggestions", w.e.registry.Suggest(m.Name(), 3))
		return w.reconstruct(m.Span, m.Nested())
	}

	args := m.Args()
	call := &macro.Call{
		Name:       m.Name(),
		Args:       make([]string, 0, len(args)+1),
		ArgOffsets: make([]int, 0, len(args)+1),
		Flags:      macro.ParseFlags(m.FlagSymbols()),
		Scoped:     closer >= 0,
		Raw:        raw,
		Start:      m.Span.Start,
		End:        end,
		Offset:     w.offset + m.Span.Start,
		Env:        w.env,
		Node:       m,
		Definition: def,
		Resolve:    w.resolver(),
	}
	spans := make([]cst.Span, 0, len(args))
	for _, a := range args {
		text, span := a.Trimmed(w.src)
		spans = append(spans, span)
		call.ArgOffsets = append(call.ArgOffsets, w.offset+span.Start)
		if def.DelayArgResolution || len(a.Macros()) == 0 {
			call.Args = append(call.Args, text)
			continue
		}
		call.Args = append(call.Args, w.nested(span, a.Macros()))
	}
	call.RawInner = w.rawInner(m, spans, call.Args, def.DelayArgResolution)

	if closer >= 0 {
		start := m.Span.End
		content := w.src[start:items[closer].Pos().Start]
		if !call.Flags.PreserveWhitespace {
			lead := len(content) - len(strings.TrimLeft(content, " \t\r\n\f\v"))
			trimmed := macro.TrimScopedContent(content)
			start += lead
			if trimmed != content[lead:lead+len(trimmed)] {
				// Dedented content no longer matches the source.
				call.ArgOffsets = append(call.ArgOffsets, w.offset+start)
				if !def.DelayArgResolution {
					trimmed = w.e.Evaluate(trimmed, w.env, w.offset+start, w.depth+1)
				}
				call.Args = append(call.Args, trimmed)
				return w.execute(call, raw)
			}
			content = trimmed
		}
		call.ArgOffsets = append(call.ArgOffsets, w.offset+start)
		if !def.DelayArgResolution {
			content = w.scoped(items, sc, opener+1, closer, cst.Span{Start: start, End: start + len(content)})
		}
		call.Args = append(call.Args, content)
	}

	return w.execute(call, raw)
}

func (w *walker) execute(call *macro.Call, raw string) string {
	out, err := w.e.registry.Execute(call)
	if err != nil {
		if macro.IsInternal(err) {
			diag.Internal(w.e.logger).Error("macro handler failed", "macro", call.Name, "offset", call.Offset, "err", err)
		} else {
			diag.Runtime(w.e.logger).Warn("macro left unresolved", "macro", call.Name, "offset", call.Offset, "err", err)
		}
		return raw
	}
	return out
}

// rawInner returns the text between the braces of the opening tag with
// each argument replaced by its resolved value. Separators and whitespace
// are kept as written.
func (w *walker) rawInner(m *cst.Macro, spans []cst.Span, values []string, delayed bool) string {
	inner := w.src[m.Open.End:m.Close.Offset]
	if delayed || len(spans) == 0 {
		return inner
	}
	var sb strings.Builder
	pos := m.Open.End
	for i, span := range spans {
		sb.WriteString(w.src[pos:span.Start])
		sb.WriteString(values[i])
		pos = span.End
	}
	sb.WriteString(w.src[pos:m.Close.Offset])
	return sb.String()
}

// deeper returns a walker one nesting level down, or nil past the limit.
func (w *walker) deeper(at int) *walker {
	if w.depth+1 > w.e.maxDepth {
		diag.Runtime(w.e.logger).Warn("macro nesting too deep, leaving text unresolved", "depth", w.depth+1, "limit", w.e.maxDepth, "offset", w.offset+at)
		return nil
	}
	return &walker{e: w.e, src: w.src, env: w.env, offset: w.offset, depth: w.depth + 1}
}

// nested resolves the macros found inside span one level down, reusing
// their parsed nodes.
func (w *walker) nested(span cst.Span, macros []*cst.Macro) string {
	next := w.deeper(span.Start)
	if next == nil {
		return span.Text(w.src)
	}
	items := make([]cst.Item, 0, 2*len(macros)+1)
	pos := span.Start
	for _, m := range macros {
		if m.Span.Start > pos {
			items = append(items, &cst.Text{Span: cst.Span{Start: pos, End: m.Span.Start}})
		}
		items = append(items, m)
		pos = m.Span.End
	}
	if span.End > pos {
		items = append(items, &cst.Text{Span: cst.Span{Start: pos, End: span.End}})
	}
	return next.items(items)
}

// scoped resolves the content of a block one level down. The pairs found
// for the enclosing items stay valid inside it.
func (w *walker) scoped(items []cst.Item, sc scopes, lo, hi int, bounds cst.Span) string {
	next := w.deeper(bounds.Start)
	if next == nil {
		return bounds.Text(w.src)
	}
	return next.run(items, sc, lo, hi, bounds)
}

func (w *walker) resolver() macro.Resolver {
	return func(text string, offset int) string {
		return w.e.pipeline(text, w.env, offset, w.depth+1)
	}
}

// reconstruct returns the source of span with each nested macro replaced by
// its own resolution.
func (w *walker) reconstruct(span cst.Span, nested []*cst.Macro) string {
	var sb strings.Builder
	pos := span.Start
	for _, n := range nested {
		sb.WriteString(w.src[pos:n.Span.Start])
		sb.WriteString(w.nested(n.Span, []*cst.Macro{n}))
		pos = n.Span.End
	}
	sb.WriteString(w.src[pos:span.End])
	return sb.String()
}

func clip(s, bounds cst.Span) cst.Span {
	s.Start = max(s.Start, bounds.Start)
	s.End = min(s.End, bounds.End)
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}
