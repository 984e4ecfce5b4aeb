// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

type action int

const (
	stay action = iota
	push
	pop
	swap // replace the current mode
)

// matcher returns the number of bytes matched at the start of s, or -1.
type matcher func(s string) int

type rule struct {
	tok   token.Token
	match matcher
	act   action
	mode  token.Mode
}

var modeRules = buildRules()

func buildRules() [token.NumModes][]rule {
	var r [token.NumModes][]rule

	r[token.ModePlaintext] = []rule{
		{tok: token.MACRO_START, match: lit("{{"), act: push, mode: token.ModeMacroDef},
		{tok: token.TEXT, match: plainRun},
	}

	r[token.ModeMacroDef] = []rule{
		{tok: token.WS, match: spaces},
		{tok: token.MACRO_END, match: lit("}}"), act: pop},
		{tok: token.FLAG, match: closingFlag},
		{tok: token.FLAG, match: flagSymbol},
		{tok: token.COMMENT, match: lit("//"), act: swap, mode: token.ModeMacroArgs},
		{tok: token.VAR_SCOPE, match: oneOf(".", "$"), act: swap, mode: token.ModeVarIdentifier},
		{tok: token.IDENT, match: identifier, act: swap, mode: token.ModeMacroIdentifierEnd},
		{match: empty, act: pop},
	}

	r[token.ModeMacroIdentifierEnd] = []rule{
		{match: argsAhead, act: swap, mode: token.ModeMacroArgs},
		{match: empty, act: pop},
	}

	r[token.ModeMacroArgs] = []rule{
		{tok: token.MACRO_START, match: lit("{{"), act: push, mode: token.ModeMacroDef},
		{tok: token.MACRO_END, match: lit("}}"), act: pop},
		{tok: token.DOUBLE_COLON, match: lit("::")},
		{tok: token.COLON, match: lit(":")},
		{tok: token.EQUALS, match: lit("=")},
		{tok: token.QUOTE, match: oneOf(`"`, `'`)},
		{tok: token.PIPE, match: lit("|"), act: push, mode: token.ModeMacroFilter},
		{tok: token.WS, match: spaces},
		{tok: token.ARG_TEXT, match: argText},
		{tok: token.UNKNOWN, match: anyRune},
	}

	r[token.ModeMacroFilter] = []rule{
		{tok: token.WS, match: spaces},
		{tok: token.FILTER_IDENT, match: identifier, act: pop},
		{match: empty, act: pop},
	}

	r[token.ModeVarIdentifier] = []rule{
		{tok: token.VAR_IDENT, match: varIdentifier, act: swap, mode: token.ModeVarAfterIdentifier},
		{match: empty, act: pop},
	}

	r[token.ModeVarAfterIdentifier] = []rule{
		{tok: token.WS, match: spaces},
		{tok: token.MACRO_END, match: lit("}}"), act: pop},
		{tok: token.VAR_OP, match: oneOf(token.UnaryOperators...)},
		{tok: token.VAR_OP, match: oneOf(token.ValueOperators...), act: swap, mode: token.ModeVarValue},
		{match: empty, act: pop},
	}

	r[token.ModeVarValue] = []rule{
		{tok: token.MACRO_START, match: lit("{{"), act: push, mode: token.ModeMacroDef},
		{tok: token.MACRO_END, match: lit("}}"), act: pop},
		{tok: token.VAR_VALUE, match: valueText},
	}

	return r
}

func lit(s string) matcher {
	return func(in string) int {
		if strings.HasPrefix(in, s) {
			return len(s)
		}
		return -1
	}
}

// oneOf matches the first alternative that is a prefix of the input, so
// alternatives must be listed longest first.
func oneOf(alts ...string) matcher {
	return func(in string) int {
		for _, a := range alts {
			if strings.HasPrefix(in, a) {
				return len(a)
			}
		}
		return -1
	}
}

func empty(string) int { return 0 }

func anyRune(in string) int {
	_, size := utf8.DecodeRuneInString(in)
	return size
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isWordByte(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9') || b == '_' || b == '-'
}

func spaces(in string) int {
	n := 0
	for n < len(in) && isSpace(in[n]) {
		n++
	}
	if n == 0 {
		return -1
	}
	return n
}

// plainRun consumes text up to the next unescaped {{. A backslash before a
// brace keeps the pair together so that \{{ never opens a macro.
func plainRun(in string) int {
	i := 0
	for i < len(in) {
		if in[i] == '\\' && i+1 < len(in) && (in[i+1] == '{' || in[i+1] == '}') {
			i += 2
			continue
		}
		if in[i] == '{' && i+1 < len(in) && in[i+1] == '{' {
			break
		}
		i++
	}
	if i == 0 {
		return -1
	}
	return i
}

// closingFlag matches a / that is not the start of the // comment marker.
// In ///, the first slash is the closing flag and the rest is the marker.
func closingFlag(in string) int {
	if len(in) == 0 || in[0] != token.FlagClosingBlock {
		return -1
	}
	if len(in) >= 2 && in[1] == '/' && !(len(in) >= 3 && in[2] == '/') {
		return -1
	}
	return 1
}

func flagSymbol(in string) int {
	if len(in) > 0 && in[0] != token.FlagClosingBlock && token.IsFlag(in[0]) {
		return 1
	}
	return -1
}

// identifier matches [A-Za-z][A-Za-z0-9_-]*.
func identifier(in string) int {
	if len(in) == 0 || !isLetter(in[0]) {
		return -1
	}
	n := 1
	for n < len(in) && isWordByte(in[n]) {
		n++
	}
	return n
}

// varIdentifier is identifier without trailing hyphens, so that .x-- lexes
// as the name x followed by the -- operator.
func varIdentifier(in string) int {
	n := identifier(in)
	if n < 0 {
		return -1
	}
	for n > 1 && in[n-1] == '-' {
		n--
	}
	return n
}

// argsAhead is a zero-width guard: arguments or the macro end follow.
func argsAhead(in string) int {
	if len(in) == 0 {
		return -1
	}
	if isSpace(in[0]) || in[0] == ':' || in[0] == '|' || strings.HasPrefix(in, "}}") {
		return 0
	}
	return -1
}

func argText(in string) int {
	i := 0
	for i < len(in) {
		c := in[i]
		if c == '\\' && i+1 < len(in) && (in[i+1] == '{' || in[i+1] == '}') {
			i += 2
			continue
		}
		if isSpace(c) || c == ':' || c == '|' || c == '=' || c == '"' || c == '\'' {
			break
		}
		if (c == '{' || c == '}') && i+1 < len(in) && in[i+1] == c {
			break
		}
		i++
	}
	if i == 0 {
		return -1
	}
	return i
}

func valueText(in string) int {
	i := 0
	for i < len(in) {
		if i+1 < len(in) && (in[i] == '{' || in[i] == '}') && in[i+1] == in[i] {
			break
		}
		i++
	}
	if i == 0 {
		return -1
	}
	return i
}
