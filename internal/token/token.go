// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines macro token types, lexer modes, and flag symbols.
package token

// Token represents a macro token type.
type Token int

const (
	EOF  Token = iota
	TEXT       // Plaintext run outside any macro

	// Macro structure
	MACRO_START // {{
	MACRO_END   // }}
	FLAG        // ! ? ~ # / > directly after {{
	IDENT       // Macro name
	COMMENT     // The // comment marker used as a macro name

	// Arguments
	DOUBLE_COLON // ::
	COLON        // :
	EQUALS       // =
	QUOTE        // " or '
	PIPE         // | output filter
	FILTER_IDENT // Filter name after |
	ARG_TEXT     // Any other run of argument text
	WS           // Whitespace inside a macro

	// Variable shorthand
	VAR_SCOPE // . (local) or $ (global)
	VAR_IDENT // Variable name
	VAR_OP    // One of the shorthand operators
	VAR_VALUE // Right-hand value text

	UNKNOWN // Catch-all for a single unmatched rune
)

// Flag symbols accepted directly after {{.
const (
	FlagImmediate          = '!'
	FlagDelayed            = '?'
	FlagReevaluate         = '~'
	FlagFilter             = '>'
	FlagClosingBlock       = '/'
	FlagPreserveWhitespace = '#'
)

// Variable scope symbols.
const (
	ScopeLocal  = '.'
	ScopeGlobal = '$'
)

// IsFlag returns true if b is one of the macro flag symbols.
func IsFlag(b byte) bool {
	switch b {
	case FlagImmediate, FlagDelayed, FlagReevaluate, FlagFilter, FlagClosingBlock, FlagPreserveWhitespace:
		return true
	}
	return false
}

// Variable shorthand operators.
const (
	OpIncrement      = "++"
	OpDecrement      = "--"
	OpNullishAssign  = "??="
	OpNullish        = "??"
	OpOrAssign       = "||="
	OpOr             = "||"
	OpSubtract       = "-="
	OpEqual          = "=="
	OpNotEqual       = "!="
	OpGreaterOrEqual = ">="
	OpGreater        = ">"
	OpLessOrEqual    = "<="
	OpLess           = "<"
	OpAdd            = "+="
	OpAssign         = "="
)

// UnaryOperators never take a right-hand value.
var UnaryOperators = []string{OpIncrement, OpDecrement}

// ValueOperators take a right-hand value. Ordered longest first so that no
// operator is shadowed by one of its prefixes.
var ValueOperators = []string{
	OpNullishAssign, OpNullish,
	OpOrAssign, OpOr,
	OpSubtract,
	OpEqual, OpNotEqual,
	OpGreaterOrEqual, OpGreater,
	OpLessOrEqual, OpLess,
	OpAdd,
	OpAssign,
}

// NeedsValue returns true if the operator requires a right-hand value.
func NeedsValue(op string) bool {
	for _, v := range ValueOperators {
		if v == op {
			return true
		}
	}
	return false
}

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case TEXT:
		return "TEXT"
	case MACRO_START:
		return "MACRO_START"
	case MACRO_END:
		return "MACRO_END"
	case FLAG:
		return "FLAG"
	case IDENT:
		return "IDENT"
	case COMMENT:
		return "COMMENT"
	case DOUBLE_COLON:
		return "DOUBLE_COLON"
	case COLON:
		return "COLON"
	case EQUALS:
		return "EQUALS"
	case QUOTE:
		return "QUOTE"
	case PIPE:
		return "PIPE"
	case FILTER_IDENT:
		return "FILTER_IDENT"
	case ARG_TEXT:
		return "ARG_TEXT"
	case WS:
		return "WS"
	case VAR_SCOPE:
		return "VAR_SCOPE"
	case VAR_IDENT:
		return "VAR_IDENT"
	case VAR_OP:
		return "VAR_OP"
	case VAR_VALUE:
		return "VAR_VALUE"
	case UNKNOWN:
		return "UNKNOWN"
	}
	return "INVALID"
}

// IsArgument returns true if the token may appear inside macro arguments.
func (t Token) IsArgument() bool {
	switch t {
	case DOUBLE_COLON, COLON, EQUALS, QUOTE, PIPE, FILTER_IDENT, ARG_TEXT, WS, UNKNOWN:
		return true
	}
	return false
}

// Mode is a lexer state. Modes form a stack while lexing.
type Mode int

const (
	ModePlaintext Mode = iota
	ModeMacroDef
	ModeMacroIdentifierEnd
	ModeMacroArgs
	ModeMacroFilter
	ModeVarIdentifier
	ModeVarAfterIdentifier
	ModeVarValue

	NumModes int = iota
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePlaintext:
		return "plaintext"
	case ModeMacroDef:
		return "macro_def"
	case ModeMacroIdentifierEnd:
		return "macro_identifier_end"
	case ModeMacroArgs:
		return "macro_args"
	case ModeMacroFilter:
		return "macro_filter_modifier"
	case ModeVarIdentifier:
		return "var_identifier"
	case ModeVarAfterIdentifier:
		return "var_after_identifier"
	case ModeVarValue:
		return "var_value"
	}
	return "unknown"
}
