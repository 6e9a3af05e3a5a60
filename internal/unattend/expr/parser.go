// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package expr

import (
	"fmt"
	"strings"
)

// value is either a bool or a string result, the two kinds this grammar
// ever produces; a bool used where a string is wanted renders as "true"/
// "false", and vice versa via truthy().
type value struct {
	isBool bool
	b      bool
	s      string
}

func boolValue(b bool) value { return value{isBool: true, b: b} }
func strValue(s string) value { return value{s: s} }

func (v value) truthy() bool {
	if v.isBool {
		return v.b
	}
	return v.s != ""
}

func (v value) str() string {
	if v.isBool {
		if v.b {
			return "true"
		}
		return "false"
	}
	return v.s
}

// parser is a minimal recursive-descent parser/evaluator combined into one
// pass, since the grammar is small enough that building then walking a
// separate AST buys nothing.
type parser struct {
	src  string
	pos  int
	vars VariableSource
}

func (p *parser) expectEOF() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return fmt.Errorf("unexpected trailing input at offset %d: %q", p.pos, p.src[p.pos:])
	}
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peekOp(op string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.src[p.pos:], op)
}

func (p *parser) consumeOp(op string) {
	p.pos += len(op)
}

func (p *parser) parseOr() (value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return value{}, err
	}
	for p.peekOp("||") {
		p.consumeOp("||")
		right, err := p.parseAnd()
		if err != nil {
			return value{}, err
		}
		left = boolValue(left.truthy() || right.truthy())
	}
	return left, nil
}

func (p *parser) parseAnd() (value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return value{}, err
	}
	for p.peekOp("&&") {
		p.consumeOp("&&")
		right, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}
		left = boolValue(left.truthy() && right.truthy())
	}
	return left, nil
}

func (p *parser) parseUnary() (value, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '!' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}
		return boolValue(!v.truthy()), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (value, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return value{}, fmt.Errorf("unexpected end of expression")
	}

	if p.src[p.pos] == '(' {
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return value{}, fmt.Errorf("expected ')' at offset %d", p.pos)
		}
		p.pos++
		return v, nil
	}

	if p.src[p.pos] == '\'' || p.src[p.pos] == '"' {
		return p.parseStringLiteral()
	}

	if isIdentStart(p.src[p.pos]) {
		ident := p.parseIdent()
		switch ident {
		case "true":
			return boolValue(true), nil
		case "false":
			return boolValue(false), nil
		case "defined":
			return p.parseDefinedCall()
		}

		p.skipSpace()
		if p.peekOp("==") || p.peekOp("!=") {
			negate := p.peekOp("!=")
			if negate {
				p.consumeOp("!=")
			} else {
				p.consumeOp("==")
			}
			rhs, err := p.parseUnary()
			if err != nil {
				return value{}, err
			}
			lhs, _ := p.vars.Query(ident)
			eq := lhs == rhs.str()
			if negate {
				eq = !eq
			}
			return boolValue(eq), nil
		}

		val, ok := p.vars.Query(ident)
		if !ok {
			return strValue(""), nil
		}
		return strValue(val), nil
	}

	return value{}, fmt.Errorf("unexpected character %q at offset %d", p.src[p.pos], p.pos)
}

func (p *parser) parseDefinedCall() (value, error) {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return value{}, fmt.Errorf("expected '(' after defined at offset %d", p.pos)
	}
	p.pos++
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return value{}, fmt.Errorf("expected identifier inside defined() at offset %d", p.pos)
	}
	name := p.src[start:p.pos]
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return value{}, fmt.Errorf("expected ')' after defined(%s at offset %d", name, p.pos)
	}
	p.pos++
	return boolValue(p.vars.Defined(name)), nil
}

func (p *parser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseStringLiteral() (value, error) {
	quote := p.src[p.pos]
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return value{}, fmt.Errorf("unterminated string literal")
	}
	s := p.src[start:p.pos]
	p.pos++
	return strValue(s), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
