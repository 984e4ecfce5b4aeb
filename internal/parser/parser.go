// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package parser builds a concrete syntax tree from the macro token stream.
//
// Parsing never fails outright. When a macro cannot be completed the parser
// records an Error, stops consuming at the offending token and closes the
// macro with a synthesized token marked Recovered. The evaluator turns such
// macros back into plaintext.
package parser

import (
	"fmt"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
	"github.com/zhu748/sillytavernapk-sub003/internal/lexer"
	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

// Error is a collected parse error.
type Error struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Result bundles the output of a parse.
type Result struct {
	Document    *cst.Document
	LexErrors   []lexer.Error
	ParseErrors []Error
}

// HasErrors reports whether lexing or parsing produced any error.
func (r Result) HasErrors() bool {
	return len(r.LexErrors) > 0 || len(r.ParseErrors) > 0
}

// Parser is a recursive-descent parser over a lexed token slice.
type Parser struct {
	items  []lexer.Item
	pos    int
	errors []Error
}

// Parse lexes and parses src.
func Parse(src string) Result {
	items, lexErrs := lexer.Lex(src)
	p := &Parser{items: items}
	doc := p.parseDocument()
	return Result{Document: doc, LexErrors: lexErrs, ParseErrors: p.errors}
}

func (p *Parser) peek() lexer.Item {
	return p.items[p.pos]
}

func (p *Parser) next() lexer.Item {
	it := p.items[p.pos]
	if it.Token != token.EOF {
		p.pos++
	}
	return it
}

func (p *Parser) at(tok token.Token) bool {
	return p.items[p.pos].Token == tok
}

func (p *Parser) skipWS() {
	for p.at(token.WS) {
		p.pos++
	}
}

func (p *Parser) errorf(at lexer.Item, format string, args ...any) {
	p.errors = append(p.errors, Error{
		Offset:  at.Offset,
		Line:    at.Line,
		Column:  at.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// document: (TEXT+ | macro)*
func (p *Parser) parseDocument() *cst.Document {
	doc := &cst.Document{}
	for !p.at(token.EOF) {
		if p.at(token.MACRO_START) {
			doc.Items = append(doc.Items, p.parseMacro())
			continue
		}
		// Anything that is not a macro start is text at this level,
		// including tokens left over after a recovered macro.
		text := &cst.Text{}
		for !p.at(token.EOF) && !p.at(token.MACRO_START) {
			text.Tokens = append(text.Tokens, p.next())
		}
		text.Span = cst.Span{Start: text.Tokens[0].Offset, End: text.Tokens[len(text.Tokens)-1].End}
		doc.Items = append(doc.Items, text)
	}
	doc.Span = cst.Span{Start: 0, End: p.peek().End}
	return doc
}

// macro: MACRO_START FLAG* (variableExpr | macroBody) MACRO_END
func (p *Parser) parseMacro() *cst.Macro {
	m := &cst.Macro{Open: p.next()}

	p.skipWS()
	for p.at(token.FLAG) {
		m.Flags = append(m.Flags, p.next())
		p.skipWS()
	}

	switch p.peek().Token {
	case token.VAR_SCOPE:
		v, ok := p.parseVariableExpr()
		m.Var = v
		if !ok {
			return p.recover(m, "expected variable name after %q", v.Scope.Value)
		}
	case token.IDENT, token.COMMENT:
		b, ok := p.parseMacroBody()
		m.Body = b
		if !ok {
			return p.recover(m, "unexpected %s after macro name %q", p.peek().Token, b.Ident.Value)
		}
		if sep, found := strayDoubleColon(b); found {
			return p.recover(m, "'::' at %d:%d inside the single argument of %q; list arguments must start with '::'", sep.Line, sep.Column, b.Ident.Value)
		}
	default:
		return p.recover(m, "expected macro name or variable, got %s", p.peek().Token)
	}

	if !p.at(token.MACRO_END) {
		return p.recover(m, "expected '}}', got %s", p.peek().Token)
	}
	m.Close = p.next()
	m.Span = cst.Span{Start: m.Open.Offset, End: m.Close.End}
	return m
}

// recover closes m with a synthesized end token at the current position. A
// stray }} at that position is absorbed into the broken macro so that the
// lexer's view of macro boundaries stays in step with the tree.
func (p *Parser) recover(m *cst.Macro, format string, args ...any) *cst.Macro {
	at := p.peek()
	p.errorf(at, format, args...)
	end := at.Offset
	if at.Token == token.MACRO_END {
		end = p.next().End
	}
	m.Close = lexer.Item{
		Token:     token.MACRO_END,
		Offset:    at.Offset,
		End:       at.Offset,
		Line:      at.Line,
		Column:    at.Column,
		Recovered: true,
	}
	m.Span = cst.Span{Start: m.Open.Offset, End: end}
	return m
}

// macroBody: (IDENT | COMMENT) arguments?
func (p *Parser) parseMacroBody() (*cst.MacroBody, bool) {
	ident := p.next()
	b := &cst.MacroBody{Ident: ident, Span: cst.Span{Start: ident.Offset, End: ident.End}}

	if ident.Token == token.IDENT {
		// Mirrors the lexer guard: a name ends at whitespace, a colon, a
		// pipe or the closing braces.
		switch p.peek().Token {
		case token.MACRO_END, token.EOF:
			return b, true
		case token.WS, token.COLON, token.DOUBLE_COLON, token.PIPE:
		default:
			return b, false
		}
	}

	args, ok := p.parseArguments(ident.End)
	b.Args = args
	if args != nil {
		b.Span.End = args.Span.End
	}
	return b, ok
}

// arguments: DOUBLE_COLON argument (DOUBLE_COLON argument)*
//
//	| COLON? argument
//
// The list form wins whenever the arguments open with ::. A single argument
// may hold raw colons but never ::.
func (p *Parser) parseArguments(start int) (*cst.Arguments, bool) {
	var parts []cst.Part
	for {
		it := p.peek()
		if it.Token == token.MACRO_START {
			parts = append(parts, p.parseMacro())
			continue
		}
		if !it.Token.IsArgument() {
			break
		}
		parts = append(parts, &cst.Leaf{Token: p.next()})
	}
	end := p.peek().Offset
	ok := p.at(token.MACRO_END) || p.at(token.EOF)

	// Leading whitespace between the name and the arguments.
	i := 0
	for i < len(parts) && isLeaf(parts[i], token.WS) {
		i++
	}
	if i == len(parts) {
		return nil, ok
	}

	args := &cst.Arguments{Span: cst.Span{Start: start, End: end}}
	if isLeaf(parts[i], token.DOUBLE_COLON) {
		args.Form = cst.FormList
		var cur *cst.Argument
		for _, part := range parts[i:] {
			if isLeaf(part, token.DOUBLE_COLON) {
				sep := part.(*cst.Leaf).Token
				args.Separators = append(args.Separators, sep)
				if cur != nil {
					cur.Span.End = sep.Offset
				}
				cur = &cst.Argument{Span: cst.Span{Start: sep.End, End: end}}
				args.List = append(args.List, cur)
				continue
			}
			cur.Parts = append(cur.Parts, part)
		}
		return args, ok
	}

	args.Form = cst.FormLegacy
	argStart := start
	rest := parts
	if isLeaf(parts[i], token.COLON) {
		colon := parts[i].(*cst.Leaf).Token
		args.Separators = append(args.Separators, colon)
		argStart = colon.End
		rest = parts[i+1:]
	}
	args.List = []*cst.Argument{{Parts: rest, Span: cst.Span{Start: argStart, End: end}}}
	return args, ok
}

// strayDoubleColon finds a :: separator inside a legacy argument. Comments
// take any text.
func strayDoubleColon(b *cst.MacroBody) (lexer.Item, bool) {
	if b.Ident.Token == token.COMMENT || b.Args == nil || b.Args.Form != cst.FormLegacy {
		return lexer.Item{}, false
	}
	for _, part := range b.Args.List[0].Parts {
		if isLeaf(part, token.DOUBLE_COLON) {
			return part.(*cst.Leaf).Token, true
		}
	}
	return lexer.Item{}, false
}

func isLeaf(p cst.Part, tok token.Token) bool {
	l, ok := p.(*cst.Leaf)
	return ok && l.Token.Token == tok
}

// variableExpr: VAR_SCOPE VAR_IDENT (variableOperator variableValue?)?
func (p *Parser) parseVariableExpr() (*cst.VariableExpr, bool) {
	v := &cst.VariableExpr{Scope: p.next()}
	v.Span = cst.Span{Start: v.Scope.Offset, End: v.Scope.End}
	if !p.at(token.VAR_IDENT) {
		return v, false
	}
	v.Ident = p.next()
	v.Span.End = v.Ident.End
	p.skipWS()

	if !p.at(token.VAR_OP) {
		return v, true
	}
	op := p.next()
	v.Op = &cst.VariableOperator{Op: op, Span: cst.Span{Start: op.Offset, End: op.End}}
	v.Span.End = op.End

	if token.NeedsValue(op.Value) {
		v.Value = p.parseVariableValue(op.End)
		v.Span.End = v.Value.Span.End
	} else {
		p.skipWS()
	}
	return v, true
}

// variableValue: (VAR_VALUE | macro)*
func (p *Parser) parseVariableValue(start int) *cst.VariableValue {
	val := &cst.VariableValue{}
	for {
		switch p.peek().Token {
		case token.VAR_VALUE:
			val.Parts = append(val.Parts, &cst.Leaf{Token: p.next()})
			continue
		case token.MACRO_START:
			val.Parts = append(val.Parts, p.parseMacro())
			continue
		}
		break
	}
	val.Span = cst.Span{Start: start, End: p.peek().Offset}
	return val
}
