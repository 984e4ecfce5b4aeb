// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"strconv"
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// variableMacros returns getvar, setvar and friends for the local scope
// and their globalvar counterparts.
func variableMacros(vars store.Variables) []entry {
	var out []entry
	for _, s := range []struct {
		scope store.Scope
		infix string
	}{
		{store.Local, "var"},
		{store.Global, "globalvar"},
	} {
		out = append(out, scopeMacros(vars, s.scope, s.infix)...)
	}
	return out
}

func scopeMacros(vars store.Variables, scope store.Scope, infix string) []entry {
	name := macro.ArgDef{Name: "name", Description: "Variable name"}
	what := string(scope) + " variable"

	op := func(ctx *macro.Context) (string, error) {
		n := strings.TrimSpace(ctx.Arg(0))
		if n == "" {
			return "", errNoName
		}
		return n, nil
	}

	step := func(delta float64) macro.Handler {
		return func(ctx *macro.Context) (any, error) {
			n, err := op(ctx)
			if err != nil {
				return nil, err
			}
			next, ok, err := store.Increment(vars, scope, n, delta)
			if err != nil {
				return nil, err
			}
			if !ok {
				ctx.Warn("cannot increment a non-numeric variable", "variable", n, "value", next)
			}
			return next, nil
		}
	}

	return []entry{
		{name: "get" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Value of a " + what + ".",
			Args:        []macro.ArgDef{name},
			Handler: func(ctx *macro.Context) (any, error) {
				n, err := op(ctx)
				if err != nil {
					return nil, err
				}
				v, _, err := vars.Get(scope, n)
				return v, err
			},
		}},
		{name: "set" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Sets a " + what + ". Resolves to nothing.",
			Args:        []macro.ArgDef{name, {Name: "value"}},
			Examples:    []string{"{{set" + infix + "::mood::happy}}", "{{set" + infix + "::notes}}long text{{/set" + infix + "}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				n, err := op(ctx)
				if err != nil {
					return nil, err
				}
				return "", vars.Set(scope, n, ctx.Arg(1))
			},
		}},
		{name: "add" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Adds a number, appends text, or pushes onto a JSON array. Resolves to nothing.",
			Args:        []macro.ArgDef{name, {Name: "value"}},
			Handler: func(ctx *macro.Context) (any, error) {
				n, err := op(ctx)
				if err != nil {
					return nil, err
				}
				_, err = store.Add(vars, scope, n, ctx.Arg(1))
				return "", err
			},
		}},
		{name: "inc" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Increments a " + what + " and resolves to the new value.",
			Args:        []macro.ArgDef{name},
			Handler:     step(1),
		}},
		{name: "dec" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Decrements a " + what + " and resolves to the new value.",
			Args:        []macro.ArgDef{name},
			Handler:     step(-1),
		}},
		{name: "has" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Whether a " + what + " exists.",
			Args:        []macro.ArgDef{name},
			ReturnType:  macro.TypeBoolean,
			Aliases:     []macro.Alias{{Name: infix + "exists", Visible: true}},
			Handler: func(ctx *macro.Context) (any, error) {
				n, err := op(ctx)
				if err != nil {
					return nil, err
				}
				_, ok, err := vars.Get(scope, n)
				return strconv.FormatBool(ok), err
			},
		}},
		{name: "delete" + infix, opts: macro.Options{
			Category:    macro.CategoryVariable,
			Description: "Deletes a " + what + ". Resolves to nothing.",
			Args:        []macro.ArgDef{name},
			Aliases:     []macro.Alias{{Name: "flush" + infix, Visible: true}},
			Handler: func(ctx *macro.Context) (any, error) {
				n, err := op(ctx)
				if err != nil {
					return nil, err
				}
				return "", vars.Delete(scope, n)
			},
		}},
	}
}
