// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package lexer provides a mode-stack lexer for macro templates.
//
// Every mode owns an ordered list of rules. At each position the first rule
// whose matcher succeeds wins; its action may push a new mode, pop the
// current one, or swap it. Zero-width matches are only honoured for pops and
// swaps, so every mode always has a defined exit and the lexer never stalls.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

// maxZeroWidth bounds consecutive zero-width transitions at one position.
const maxZeroWidth = 16

// Item represents a lexed token with its value and source position.
type Item struct {
	Token  token.Token
	Value  string
	Offset int // Byte offset of the first byte
	End    int // Byte offset just past the last byte
	Line   int // 1-based line
	Column int // 1-based column, counted in runes

	// Recovered marks a token synthesized by parser recovery. It has no
	// source text and Offset == End.
	Recovered bool
}

func (i Item) String() string {
	if i.Recovered {
		return fmt.Sprintf("%s(recovered)@%d", i.Token, i.Offset)
	}
	return fmt.Sprintf("%s(%q)@%d", i.Token, i.Value, i.Offset)
}

// Error is a collected lexing error. Lexing continues after it.
type Error struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Lexer tokenizes macro templates.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	stack  []token.Mode
	peeked *Item
	errors []Error
}

// New creates a new Lexer over input, starting in plaintext mode.
func New(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
		stack: []token.Mode{token.ModePlaintext},
	}
}

// Lex tokenizes the whole input. The returned items always end with EOF and
// their values concatenate back to the input.
func Lex(input string) ([]Item, []Error) {
	l := New(input)
	var items []Item
	for {
		it := l.Next()
		items = append(items, it)
		if it.Token == token.EOF {
			break
		}
	}
	return items, l.Errors()
}

// Errors returns the lexing errors collected so far.
func (l *Lexer) Errors() []Error {
	return l.errors
}

// Mode returns the current lexer mode.
func (l *Lexer) Mode() token.Mode {
	return l.stack[len(l.stack)-1]
}

// Depth returns the size of the mode stack.
func (l *Lexer) Depth() int {
	return len(l.stack)
}

// Peek returns the next item without consuming it.
func (l *Lexer) Peek() Item {
	if l.peeked == nil {
		it := l.Next()
		l.peeked = &it
	}
	return *l.peeked
}

// Next returns the next token from the input.
func (l *Lexer) Next() Item {
	if l.peeked != nil {
		it := *l.peeked
		l.peeked = nil
		return it
	}

	zero := 0
	for {
		if l.pos >= len(l.input) {
			// Unterminated constructs are reported by the parser; the lexer
			// itself always finishes back in plaintext.
			l.stack = l.stack[:1]
			return Item{Token: token.EOF, Offset: l.pos, End: l.pos, Line: l.line, Column: l.col}
		}

		rest := l.input[l.pos:]
		var hit *rule
		n := -1
		for i := range modeRules[l.Mode()] {
			r := &modeRules[l.Mode()][i]
			m := r.match(rest)
			if m < 0 {
				continue
			}
			if m == 0 && (r.act == stay || r.act == push || zero >= maxZeroWidth) {
				continue
			}
			hit, n = r, m
			break
		}

		if hit == nil {
			_, size := utf8.DecodeRuneInString(rest)
			l.errors = append(l.errors, Error{
				Offset:  l.pos,
				Line:    l.line,
				Column:  l.col,
				Message: fmt.Sprintf("unexpected %q in %s mode", rest[:size], l.Mode()),
			})
			return l.emit(token.UNKNOWN, size)
		}

		if n == 0 {
			zero++
			l.apply(hit)
			continue
		}

		it := l.emit(hit.tok, n)
		l.apply(hit)
		return it
	}
}

// emit consumes n bytes as a token of type tok.
func (l *Lexer) emit(tok token.Token, n int) Item {
	it := Item{
		Token:  tok,
		Value:  l.input[l.pos : l.pos+n],
		Offset: l.pos,
		End:    l.pos + n,
		Line:   l.line,
		Column: l.col,
	}
	for _, r := range it.Value {
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.pos += n
	return it
}

func (l *Lexer) apply(r *rule) {
	switch r.act {
	case push:
		l.stack = append(l.stack, r.mode)
	case pop:
		if len(l.stack) > 1 {
			l.stack = l.stack[:len(l.stack)-1]
		}
	case swap:
		if len(l.stack) > 1 {
			l.stack[len(l.stack)-1] = r.mode
		} else {
			l.stack = append(l.stack, r.mode)
		}
	}
}
