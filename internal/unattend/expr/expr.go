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

// Package expr is the ExprEvaluator boundary: a small boolean/string
// expression grammar evaluated against a host-supplied variable lookup.
// The template engine is the only caller; nothing here knows about
// placeholders, escaping, or the conditional stack.
package expr

import "vboxunattend/internal/unattend/unattendutil"

// VariableSource resolves identifiers referenced from an expression. The
// template engine implements this over a Profile/VMContext/detection
// result; in a dead conditional branch it must still answer Defined
// without error, returning false for names it cannot resolve.
type VariableSource interface {
	// Query returns the string value of name. ok is false if name is not
	// a known variable; querying an unknown variable is a hard error at
	// the caller's discretion, never this package's.
	Query(name string) (value string, ok bool)
	// Defined reports whether name resolves to a non-empty value. It
	// never errors, even for unknown names (returns false).
	Defined(name string) bool
}

// Evaluator evaluates expressions of the grammar documented on
// SimpleEvaluator against a VariableSource.
type Evaluator interface {
	EvalBool(expression string, vars VariableSource) (bool, error)
	EvalString(expression string, vars VariableSource) (string, error)
}

// SimpleEvaluator is the concrete Evaluator used throughout this module.
// It implements a minimal recursive-descent parser over a single-line
// grammar:
//
//	expr       := orExpr
//	orExpr     := andExpr ( "||" andExpr )*
//	andExpr    := unary ( "&&" unary )*
//	unary      := "!" unary | primary
//	primary    := "(" orExpr ")"
//	            | "defined" "(" IDENT ")"
//	            | IDENT ( "==" | "!=" ) STRING
//	            | IDENT
//	            | STRING
//	            | "true" | "false"
//	IDENT      := [A-Za-z_][A-Za-z0-9_]*
//	STRING     := "'" ... "'" | '"' ... '"'
//
// An IDENT used where a bool is needed evaluates to Defined(IDENT); used
// where a string is needed it evaluates to Query(IDENT) (empty string if
// undefined).
type SimpleEvaluator struct{}

func (SimpleEvaluator) EvalBool(expression string, vars VariableSource) (bool, error) {
	p := &parser{src: expression, vars: vars}
	v, err := p.parseOr()
	if err != nil {
		return false, unattendutil.Newf(unattendutil.KindParseError, "expr.EvalBool", "%w", err)
	}
	if err := p.expectEOF(); err != nil {
		return false, unattendutil.Newf(unattendutil.KindParseError, "expr.EvalBool", "%w", err)
	}
	return v.truthy(), nil
}

func (SimpleEvaluator) EvalString(expression string, vars VariableSource) (string, error) {
	p := &parser{src: expression, vars: vars}
	v, err := p.parseOr()
	if err != nil {
		return "", unattendutil.Newf(unattendutil.KindParseError, "expr.EvalString", "%w", err)
	}
	if err := p.expectEOF(); err != nil {
		return "", unattendutil.Newf(unattendutil.KindParseError, "expr.EvalString", "%w", err)
	}
	return v.str(), nil
}

var _ Evaluator = SimpleEvaluator{}
