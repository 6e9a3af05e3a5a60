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

package template

import (
	"fmt"
	"strings"
)

// verb is the dispatch tag for a parsed placeholder, per spec.md 4.1.1.
type verb int

const (
	verbInsert verb = iota
	verbCond
	verbCondElse
	verbCondEnd
	verbSplitterStart
	verbSplitterEnd
)

// placeholder is one parsed `@@VBOX_...@@` form.
type placeholder struct {
	verb     verb
	name     string // set for INSERT_<NAME>, COND_<NAME>
	expr     string // set for INSERT[<expr>], COND[<expr>]
	hasExpr  bool
	escaping Escaping
	filename string // set for SPLITTER_START/END
}

const placeholderPrefix = "@@VBOX_"
const placeholderSuffix = "@@"
const maxPlaceholderSpan = 1024

// findPlaceholder locates the next placeholder at or after offset start in
// src. It returns the byte range [begin,end) of the whole `@@VBOX_...@@`
// span (end is exclusive, just past the closing "@@"), or found=false if
// no more "@@VBOX_" prefixes exist.
func findPlaceholder(src string, start int) (begin, end int, found bool, err error) {
	rel := strings.Index(src[start:], placeholderPrefix)
	if rel < 0 {
		return 0, 0, false, nil
	}
	begin = start + rel
	bodyStart := begin + len(placeholderPrefix)
	limit := bodyStart + maxPlaceholderSpan
	if limit > len(src) {
		limit = len(src)
	}
	closeRel := strings.Index(src[bodyStart:limit], placeholderSuffix)
	if closeRel < 0 {
		return 0, 0, false, fmt.Errorf("malformed placeholder: no closing \"@@\" within %d bytes", maxPlaceholderSpan)
	}
	end = bodyStart + closeRel + len(placeholderSuffix)
	return begin, end, true, nil
}

// parsePlaceholder parses the body of a placeholder (the text between
// "@@VBOX_" and the final "@@", exclusive of both) into a placeholder.
func parsePlaceholder(body string) (placeholder, error) {
	switch {
	case body == "COND_ELSE":
		return placeholder{verb: verbCondElse}, nil
	case body == "COND_END":
		return placeholder{verb: verbCondEnd}, nil
	case strings.HasPrefix(body, "SPLITTER_START["):
		name, err := bracketArg(body, "SPLITTER_START[")
		if err != nil {
			return placeholder{}, err
		}
		return placeholder{verb: verbSplitterStart, filename: name}, nil
	case strings.HasPrefix(body, "SPLITTER_END["):
		name, err := bracketArg(body, "SPLITTER_END[")
		if err != nil {
			return placeholder{}, err
		}
		return placeholder{verb: verbSplitterEnd, filename: name}, nil
	case strings.HasPrefix(body, "COND["):
		expr, err := bracketArg(body, "COND[")
		if err != nil {
			return placeholder{}, err
		}
		return placeholder{verb: verbCond, expr: expr, hasExpr: true}, nil
	case strings.HasPrefix(body, "COND_"):
		return placeholder{verb: verbCond, name: body[len("COND_"):]}, nil
	case strings.HasPrefix(body, "INSERT["):
		rest := body[len("INSERT["):]
		closeIdx := strings.LastIndex(rest, "]")
		if closeIdx < 0 {
			return placeholder{}, fmt.Errorf("malformed placeholder: missing closing ']' in %q", body)
		}
		exprText := rest[:closeIdx]
		suffix := rest[closeIdx+1:]
		esc, err := escapingForBracketSuffix(suffix)
		if err != nil {
			return placeholder{}, err
		}
		return placeholder{verb: verbInsert, expr: exprText, hasExpr: true, escaping: esc}, nil
	case strings.HasPrefix(body, "INSERT_"):
		rest := body[len("INSERT_"):]
		name, esc, err := splitNameSuffix(rest)
		if err != nil {
			return placeholder{}, err
		}
		return placeholder{verb: verbInsert, name: name, escaping: esc}, nil
	default:
		return placeholder{}, fmt.Errorf("malformed placeholder: unrecognized verb in %q", body)
	}
}

func bracketArg(body, prefix string) (string, error) {
	rest := body[len(prefix):]
	if !strings.HasSuffix(rest, "]") {
		return "", fmt.Errorf("malformed placeholder: missing closing ']' in %q", body)
	}
	return rest[:len(rest)-1], nil
}

func escapingForBracketSuffix(suffix string) (Escaping, error) {
	switch suffix {
	case "":
		return EscapeNone, nil
	case "SH":
		return EscapeShell, nil
	case "ELEMENT":
		return EscapeXMLElement, nil
	case "ATTRIB_DQ":
		return EscapeXMLAttribDQ, nil
	default:
		return 0, fmt.Errorf("malformed placeholder: unknown escaping suffix %q", suffix)
	}
}

// splitNameSuffix splits an INSERT_<NAME>[_SH|_ELEMENT|_ATTRIB_DQ] body
// (already past "INSERT_") into the variable name and its escaping mode.
func splitNameSuffix(rest string) (string, Escaping, error) {
	for _, c := range []struct {
		suffix string
		esc    Escaping
	}{
		{"_ATTRIB_DQ", EscapeXMLAttribDQ},
		{"_ELEMENT", EscapeXMLElement},
		{"_SH", EscapeShell},
	} {
		if strings.HasSuffix(rest, c.suffix) && len(rest) > len(c.suffix) {
			return rest[:len(rest)-len(c.suffix)], c.esc, nil
		}
	}
	if rest == "" {
		return "", 0, fmt.Errorf("malformed placeholder: empty variable name")
	}
	return rest, EscapeNone, nil
}
