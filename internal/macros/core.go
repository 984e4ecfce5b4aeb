// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/parser"
)

func coreMacros() []entry {
	return []entry{
		{name: "//", opts: macro.Options{
			Category:           macro.CategoryUtility,
			Description:        "Comment. Resolves to nothing.",
			Args:               []macro.ArgDef{{Name: "text", Optional: true}},
			Lenient:            true,
			DelayArgResolution: true,
			Examples:           []string{"{{// note to self}}", "{{//}}multi-line note{{///}}"},
			Handler:            func(*macro.Context) (any, error) { return "", nil },
		}},
		{name: "if", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "Resolves content when the condition is truthy. Content may hold an {{else}} branch.",
			Args: []macro.ArgDef{
				{Name: "condition", Description: "Text or macro name; prefix with ! to negate"},
				{Name: "content", Description: "Branches separated by {{else}}"},
			},
			DelayArgResolution: true,
			Examples: []string{
				"{{if::{{user}}::Hi {{user}}}}",
				"{{if description}}{{description}}{{else}}No description{{/if}}",
			},
			Handler: ifHandler,
		}},
		{name: "else", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "Separates the branches of {{if}}.",
			Handler:     func(*macro.Context) (any, error) { return macro.ElseMarker, nil },
		}},
		{name: "trim", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "Trims scoped content. Inline, removes itself and the surrounding newlines.",
			Args:        []macro.ArgDef{{Name: "content", Optional: true}},
			Handler: func(ctx *macro.Context) (any, error) {
				if len(ctx.UnnamedArgs) == 0 {
					// The post-processor strips the marker together with its newlines.
					return "{{trim}}", nil
				}
				return strings.TrimSpace(ctx.Arg(0)), nil
			},
		}},
		{name: "noop", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "Resolves to nothing.",
			Handler:     func(*macro.Context) (any, error) { return "", nil },
		}},
		{name: "newline", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "A line break.",
			Handler:     func(*macro.Context) (any, error) { return "\n", nil },
		}},
		{name: "space", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "One or more spaces.",
			Args:        []macro.ArgDef{{Name: "count", Type: macro.TypeInteger, Optional: true, Default: "1"}},
			Handler: func(ctx *macro.Context) (any, error) {
				n, _ := strconv.Atoi(ctx.Arg(0))
				return strings.Repeat(" ", max(n, 0)), nil
			},
		}},
		content("reverse", "Reverses text.", reverse),
		content("upper", "Uppercases text.", strings.ToUpper),
		content("lower", "Lowercases text.", strings.ToLower),
		content("len", "Length of text in characters.", func(s string) string {
			return strconv.Itoa(utf8.RuneCountInString(s))
		}),
		value("original", macro.CategoryUtility, "The original prompt text.", func(env *macro.Env) string { return env.Original }),
		value("input", macro.CategoryUtility, "The pending user input.", func(env *macro.Env) string { return env.Input }),
		{name: "banned", opts: macro.Options{
			Category:    macro.CategoryUtility,
			Description: "Banned word list for text generation. Resolves to nothing here.",
			Args:        []macro.ArgDef{{Name: "words", Optional: true}},
			Lenient:     true,
			Handler:     func(*macro.Context) (any, error) { return "", nil },
		}},
	}
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func ifHandler(ctx *macro.Context) (any, error) {
	cond := strings.TrimSpace(ctx.Arg(0))
	negate := false
	if strings.HasPrefix(cond, "!") {
		negate = true
		cond = strings.TrimSpace(cond[1:])
	}
	// A bare macro name stands for its value: {{if description}}.
	if macro.ValidName(cond) && ctx.HasMacro(cond) {
		cond = "{{" + cond + "}}"
	}
	truthy := !macro.IsFalsy(ctx.ResolveAt(cond, ctx.ArgOffset(0)))
	if negate {
		truthy = !truthy
	}

	body := ctx.Arg(1)
	thenText, elseText, elseAt := splitElse(body)
	text, at := thenText, 0
	if !truthy {
		if elseAt < 0 {
			return "", nil
		}
		text, at = elseText, elseAt
	}
	if !ctx.Flags.PreserveWhitespace {
		lead := len(text) - len(strings.TrimLeft(text, " \t\r\n\f\v"))
		text = macro.TrimScopedContent(text)
		at += lead
	}
	return ctx.ResolveAt(text, ctx.ArgOffset(1)+at), nil
}

// splitElse splits body at its top-level {{else}}. Nested {{if}} blocks keep
// their own {{else}}. elseAt is the offset of the else branch in body, or
// -1 when there is none.
func splitElse(body string) (thenText, elseText string, elseAt int) {
	if !strings.Contains(body, "{{") {
		return body, "", -1
	}
	depth := 0
	for _, m := range parser.Parse(body).Document.Macros() {
		if m.Recovered() || m.Body == nil {
			continue
		}
		switch strings.ToLower(m.Name()) {
		case "if":
			switch {
			case m.IsClosing():
				depth--
			case len(m.Args()) < 2:
				depth++
			}
		case "else":
			if depth == 0 && !m.IsClosing() {
				return body[:m.Span.Start], body[m.Span.End:], m.Span.End
			}
		}
	}
	return body, "", -1
}
