// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package cst

import (
	"fmt"
	"io"
	"strings"
)

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	switch n := n.(type) {
	case *Document:
		for _, it := range n.Items {
			out = append(out, it)
		}
	case *Macro:
		if n.Body != nil {
			out = append(out, n.Body)
		}
		if n.Var != nil {
			out = append(out, n.Var)
		}
	case *MacroBody:
		if n.Args != nil {
			out = append(out, n.Args)
		}
	case *Arguments:
		for _, a := range n.List {
			out = append(out, a)
		}
	case *Argument:
		for _, p := range n.Parts {
			out = append(out, p)
		}
	case *VariableExpr:
		if n.Op != nil {
			out = append(out, n.Op)
		}
		if n.Value != nil {
			out = append(out, n.Value)
		}
	case *VariableValue:
		for _, p := range n.Parts {
			out = append(out, p)
		}
	}
	return out
}

// Inspect traverses the tree rooted at n in depth-first source order. If fn
// returns false, the children of that node are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// MacroAt returns the innermost macro whose span contains offset, or nil.
func MacroAt(doc *Document, offset int) *Macro {
	var found *Macro
	Inspect(doc, func(n Node) bool {
		if _, ok := n.(*Document); ok {
			return true
		}
		if !n.Pos().Contains(offset) {
			return false
		}
		if m, ok := n.(*Macro); ok {
			found = m
		}
		return true
	})
	return found
}

// Fprint writes an indented outline of the tree to w.
func Fprint(w io.Writer, src string, n Node) error {
	return fprint(w, src, n, 0)
}

func fprint(w io.Writer, src string, n Node, depth int) error {
	pad := strings.Repeat("  ", depth)
	s := n.Pos()
	var err error
	switch n := n.(type) {
	case *Document:
		_, err = fmt.Fprintf(w, "%sdocument [%d,%d)\n", pad, s.Start, s.End)
	case *Text:
		_, err = fmt.Fprintf(w, "%stext [%d,%d) %q\n", pad, s.Start, s.End, s.Text(src))
	case *Leaf:
		_, err = fmt.Fprintf(w, "%s%s %q\n", pad, n.Token.Token, n.Token.Value)
	case *Macro:
		extra := ""
		if n.Recovered() {
			extra = " (recovered)"
		}
		_, err = fmt.Fprintf(w, "%smacro [%d,%d) flags=%q%s\n", pad, s.Start, s.End, strings.Join(n.FlagSymbols(), ""), extra)
	case *MacroBody:
		_, err = fmt.Fprintf(w, "%smacroBody %q\n", pad, n.Ident.Value)
	case *Arguments:
		_, err = fmt.Fprintf(w, "%sarguments %s (%d)\n", pad, n.Form, len(n.List))
	case *Argument:
		_, err = fmt.Fprintf(w, "%sargument [%d,%d) %q\n", pad, s.Start, s.End, s.Text(src))
	case *VariableExpr:
		_, err = fmt.Fprintf(w, "%svariableExpr %s%s\n", pad, n.Scope.Value, n.Name())
	case *VariableOperator:
		_, err = fmt.Fprintf(w, "%svariableOperator %q\n", pad, n.Op.Value)
	case *VariableValue:
		_, err = fmt.Fprintf(w, "%svariableValue [%d,%d) %q\n", pad, s.Start, s.End, s.Text(src))
	}
	if err != nil {
		return err
	}
	// Argument and value leaves are already shown in the parent's text.
	switch n.(type) {
	case *Argument, *VariableValue:
		for _, c := range Children(n) {
			if m, ok := c.(*Macro); ok {
				if err := fprint(w, src, m, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, c := range Children(n) {
		if err := fprint(w, src, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
