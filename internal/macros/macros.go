// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package macros defines the built-in macro set.
//
// Register installs every group into a registry. Macros that read or write
// variables share the store passed to Register with the evaluator's
// shorthand syntax, so {{setvar::x::1}} and {{.x}} see the same value.
package macros

import (
	"errors"
	"fmt"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

var core = &macro.Source{Name: "core"}

var errNoName = errors.New("variable name is required")

type entry struct {
	name string
	opts macro.Options
}

// Register installs the built-in macros. A nil store disables the
// variable macros. Every failed registration is reported; the rest are
// still installed.
func Register(reg *macro.Registry, vars store.Variables) error {
	groups := [][]entry{
		coreMacros(),
		nameMacros(),
		characterMacros(),
		chatMacros(),
		timeMacros(),
		randomMacros(),
	}
	if vars != nil {
		groups = append(groups, variableMacros(vars))
	}

	var errs []error
	for _, g := range groups {
		for _, e := range g {
			e.opts.Source = core
			if _, err := reg.Register(e.name, e.opts); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// value builds a no-argument macro that returns fn's result.
func value(name string, cat macro.Category, desc string, fn func(env *macro.Env) string, aliases ...string) entry {
	e := entry{name: name, opts: macro.Options{
		Category:    cat,
		Description: desc,
		Handler: func(ctx *macro.Context) (any, error) {
			return fn(ctx.Env), nil
		},
	}}
	for _, a := range aliases {
		e.opts.Aliases = append(e.opts.Aliases, macro.Alias{Name: a, Visible: true})
	}
	return e
}

// content builds a one-argument macro that transforms its argument, which
// may also come from a scoped block.
func content(name, desc string, fn func(string) string) entry {
	return entry{name: name, opts: macro.Options{
		Category:    macro.CategoryUtility,
		Description: desc,
		Args:        []macro.ArgDef{{Name: "content", Description: "Text to transform"}},
		Examples:    []string{fmt.Sprintf("{{%s::text}}", name), fmt.Sprintf("{{%s}}text{{/%s}}", name, name)},
		Handler: func(ctx *macro.Context) (any, error) {
			return fn(ctx.Arg(0)), nil
		},
	}}
}
