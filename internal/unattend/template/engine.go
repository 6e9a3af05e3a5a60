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

// Package template implements the TemplateEngine of spec.md 4.1: it lexes
// a byte-string template, resolves `@@VBOX_...@@` placeholders against a
// Profile and an expression evaluator, manages the conditional-nesting
// stack, and emits the expanded result. It knows nothing about how the
// result is subsequently split into files (see package splitter).
package template

import (
	"strings"

	"vboxunattend/internal/unattend/expr"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/unattendutil"
)

// MaxConditionalDepth is the bound on nested COND/COND_END pairs, per
// spec.md 3's "bounded conditional stack (depth ≥ 8)".
const MaxConditionalDepth = 32

// Engine expands templates against a Profile-backed variable namespace.
// The zero value is ready to use with the default SimpleEvaluator.
type Engine struct {
	Evaluator expr.Evaluator
}

// New returns an Engine using expr.SimpleEvaluator for bracketed
// expressions.
func New() *Engine {
	return &Engine{Evaluator: expr.SimpleEvaluator{}}
}

func (e *Engine) evaluator() expr.Evaluator {
	if e.Evaluator != nil {
		return e.Evaluator
	}
	return expr.SimpleEvaluator{}
}

type condFrame struct {
	savedOutputting bool
}

// Expand transforms tmpl into its expanded form against store and ctx.
// The raw template bytes and a reference to the Profile are the only
// state TemplateEngine instances hold, per spec.md's ownership model;
// Expand itself is stateless across calls.
func (e *Engine) Expand(tmpl []byte, store profile.ValueStore, ctx Context) ([]byte, error) {
	src := string(tmpl)
	res := newResolver(store, ctx)

	var out strings.Builder
	out.Grow(len(src))

	outputting := true
	var stack []condFrame

	pos := 0
	for {
		begin, end, found, err := findPlaceholder(src, pos)
		if err != nil {
			return nil, unattendutil.AtOffset("template.Expand", pos, err)
		}
		if !found {
			if outputting {
				out.WriteString(src[pos:])
			}
			break
		}

		if outputting {
			out.WriteString(src[pos:begin])
		}

		bodyStart := begin + len(placeholderPrefix)
		bodyEnd := end - len(placeholderSuffix)
		body := src[bodyStart:bodyEnd]

		ph, err := parsePlaceholder(body)
		if err != nil {
			return nil, unattendutil.AtOffset("template.Expand", begin, err)
		}

		switch ph.verb {
		case verbInsert:
			val, err := e.resolveInsert(ph, res)
			if err != nil {
				return nil, unattendutil.AtOffset("template.Expand", begin, err)
			}
			if outputting {
				out.WriteString(Escape(ph.escaping, val))
			}

		case verbCond:
			if len(stack) >= MaxConditionalDepth {
				return nil, unattendutil.AtOffset("template.Expand", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.Expand", "conditional stack overflow (max depth %d)", MaxConditionalDepth))
			}
			pred, err := e.resolveCond(ph, res)
			if err != nil {
				return nil, unattendutil.AtOffset("template.Expand", begin, err)
			}
			stack = append(stack, condFrame{savedOutputting: outputting})
			outputting = outputting && pred

		case verbCondElse:
			if len(stack) == 0 {
				return nil, unattendutil.AtOffset("template.Expand", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.Expand", "COND_ELSE without matching COND"))
			}
			// outputting before COND_ELSE is savedOutputting && predicate;
			// flipping predicate while keeping the ambient AND with the
			// saved outer is savedOutputting && !outputting, which also
			// correctly stays false when savedOutputting is already false.
			outputting = stack[len(stack)-1].savedOutputting && !outputting

		case verbCondEnd:
			if len(stack) == 0 {
				return nil, unattendutil.AtOffset("template.Expand", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.Expand", "COND_END without matching COND"))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			outputting = top.savedOutputting

		case verbSplitterStart, verbSplitterEnd:
			if outputting {
				out.WriteString(src[begin:end])
			}
		}

		pos = end
	}

	if len(stack) > 0 {
		return nil, unattendutil.AtOffset("template.Expand", pos,
			unattendutil.Newf(unattendutil.KindParseError, "template.Expand", "missing %d @@VBOX_COND_END@@", len(stack)))
	}

	return []byte(out.String()), nil
}

func (e *Engine) resolveInsert(ph placeholder, res *resolver) (string, error) {
	if ph.hasExpr {
		return e.evaluator().EvalString(ph.expr, res)
	}
	val, ok := res.Query(ph.name)
	if !ok {
		return "", unattendutil.Newf(unattendutil.KindInvalidField, "template.resolveInsert", "unknown variable %q", ph.name)
	}
	return val, nil
}

func (e *Engine) resolveCond(ph placeholder, res *resolver) (bool, error) {
	if ph.hasExpr {
		return e.evaluator().EvalBool(ph.expr, res)
	}
	pred, ok := res.predicate(ph.name)
	if !ok {
		return false, unattendutil.Newf(unattendutil.KindInvalidField, "template.resolveCond", "unknown conditional predicate %q", ph.name)
	}
	return pred, nil
}
