// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

// Thunk computes a value on first use and caches it.
type Thunk struct {
	fn    func() string
	value string
	done  bool
}

// NewThunk wraps fn.
func NewThunk(fn func() string) *Thunk {
	return &Thunk{fn: fn}
}

// Value returns the cached result, computing it once.
func (t *Thunk) Value() string {
	if !t.done {
		t.value = t.fn()
		t.fn = nil
		t.done = true
	}
	return t.value
}

// Evaluated reports whether the value has been computed.
func (t *Thunk) Evaluated() bool { return t.done }

// variable evaluates a .name or $name expression against the store. The
// right-hand value is resolved only when the operator needs it.
func (w *walker) variable(m *cst.Macro) string {
	v := m.Var
	scope := store.Local
	if v.Global() {
		scope = store.Global
	}
	name := v.Name()
	op := v.Operator()
	raw := m.Span.Text(w.src)
	log := diag.Runtime(w.e.logger).With("variable", string(scope)+":"+name, "offset", w.offset+m.Span.Start)

	value := NewThunk(func() string {
		if v.Value == nil {
			return ""
		}
		text, span := v.Value.Trimmed(w.src)
		if len(v.Value.Macros()) == 0 {
			return text
		}
		return w.nested(span, v.Value.Macros())
	})

	vars := w.e.vars
	current, exists, err := vars.Get(scope, name)
	if err != nil {
		log.Warn("variable read failed", "err", err)
		return raw
	}

	set := func(val string) bool {
		if err := vars.Set(scope, name, val); err != nil {
			log.Warn("variable write failed", "err", err)
			return false
		}
		return true
	}

	switch op {
	case "":
		return current

	case token.OpAssign:
		if !set(value.Value()) {
			return raw
		}
		return ""

	case token.OpIncrement, token.OpDecrement:
		delta := 1.0
		if op == token.OpDecrement {
			delta = -1
		}
		next, ok, err := store.Increment(vars, scope, name, delta)
		if err != nil {
			log.Warn("variable write failed", "err", err)
			return raw
		}
		if !ok {
			log.Warn("cannot increment a non-numeric variable", "op", op, "value", current)
		}
		return next

	case token.OpAdd:
		if _, err := store.Add(vars, scope, name, value.Value()); err != nil {
			log.Warn("variable write failed", "err", err)
			return raw
		}
		return ""

	case token.OpSubtract:
		a, aok := numberOrZero(current)
		b, bok := macro.ParseNumber(value.Value())
		if !aok || !bok {
			log.Warn("cannot subtract non-numeric values", "value", current, "operand", value.Value())
			return ""
		}
		if !set(macro.FormatNumber(a - b)) {
			return raw
		}
		return ""

	case token.OpOr:
		if macro.IsFalsy(current) {
			return value.Value()
		}
		return current

	case token.OpOrAssign:
		if macro.IsFalsy(current) {
			val := value.Value()
			if !set(val) {
				return raw
			}
			return val
		}
		return current

	case token.OpNullish:
		if exists {
			return current
		}
		return value.Value()

	case token.OpNullishAssign:
		if exists {
			return current
		}
		val := value.Value()
		if !set(val) {
			return raw
		}
		return val

	case token.OpEqual:
		return boolText(canonical(current) == canonical(value.Value()))

	case token.OpNotEqual:
		return boolText(canonical(current) != canonical(value.Value()))

	case token.OpGreater, token.OpGreaterOrEqual, token.OpLess, token.OpLessOrEqual:
		a, aok := numberOrZero(current)
		b, bok := macro.ParseNumber(value.Value())
		if !aok || !bok {
			log.Warn("cannot compare non-numeric values", "op", op, "value", current, "operand", value.Value())
			return "false"
		}
		switch op {
		case token.OpGreater:
			return boolText(a > b)
		case token.OpGreaterOrEqual:
			return boolText(a >= b)
		case token.OpLess:
			return boolText(a < b)
		default:
			return boolText(a <= b)
		}
	}

	log.Warn("unknown variable operator", "op", op)
	return raw
}

// numberOrZero parses s, treating empty as zero.
func numberOrZero(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, true
	}
	return macro.ParseNumber(s)
}

// canonical trims s and normalizes numbers so "1.0" equals "1".
func canonical(s string) string {
	if n, ok := macro.ParseNumber(s); ok {
		return macro.FormatNumber(n)
	}
	return strings.TrimSpace(s)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
