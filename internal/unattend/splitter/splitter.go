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

// Package splitter implements the second pass over an expanded template
// (spec.md 4.2): it carves the output into multiple named files delimited
// by paired @@VBOX_SPLITTER_START[name]@@ / @@VBOX_SPLITTER_END[name]@@
// markers left verbatim by the template engine.
package splitter

import (
	"strings"

	"vboxunattend/internal/unattend/unattendutil"
)

const maxNameLen = 64

// FileWriter is the narrow collaborator Split uses to persist a produced
// file; callers typically back it with os.WriteFile or a media package
// aux-file writer.
type FileWriter interface {
	WriteFile(name string, content []byte) error
}

// Split scans expanded for SPLITTER_START/END pairs and invokes w for each,
// returning the ordered list of names written. Text outside any pair is
// discarded. An empty input produces an empty list.
func Split(expanded []byte, w FileWriter) ([]string, error) {
	src := string(expanded)
	var names []string

	pos := 0
	for {
		startBegin, startEnd, name, found, err := findMarker(src, pos, "SPLITTER_START")
		if err != nil {
			return nil, unattendutil.AtOffset("splitter.Split", pos, err)
		}
		if !found {
			break
		}
		if err := validateName(name); err != nil {
			return nil, unattendutil.AtOffset("splitter.Split", startBegin, err)
		}

		contentStart := skipLeadingLineBreak(src, startEnd)

		nextStartBegin, _, _, startFound, _ := findMarker(src, contentStart, "SPLITTER_START")
		endBegin, endEnd, endName, endFound, err := findMarker(src, contentStart, "SPLITTER_END")
		if err != nil {
			return nil, unattendutil.AtOffset("splitter.Split", contentStart, err)
		}
		if !endFound {
			return nil, unattendutil.Newf(unattendutil.KindParseError, "splitter.Split", "unclosed SPLITTER_START[%s]: no matching SPLITTER_END before end of input", name)
		}
		if startFound && nextStartBegin < endBegin {
			return nil, unattendutil.AtOffset("splitter.Split", nextStartBegin,
				unattendutil.Newf(unattendutil.KindParseError, "splitter.Split", "SPLITTER_START found before SPLITTER_END[%s] closed; pairs do not nest", name))
		}
		if endName != name {
			return nil, unattendutil.AtOffset("splitter.Split", endBegin,
				unattendutil.Newf(unattendutil.KindParseError, "splitter.Split", "SPLITTER_END[%s] does not match SPLITTER_START[%s]", endName, name))
		}

		content := src[contentStart:endBegin]
		if err := w.WriteFile(name, []byte(content)); err != nil {
			return nil, unattendutil.New(unattendutil.KindIOError, "splitter.Split", err)
		}
		names = append(names, name)

		pos = endEnd
	}

	return names, nil
}

// findMarker locates the next "@@VBOX_<kind>[<name>]@@" marker at or after
// start. It returns the byte span [begin,end) of the whole marker and the
// parsed name.
func findMarker(src string, start int, kind string) (begin, end int, name string, found bool, err error) {
	prefix := "@@VBOX_" + kind + "["
	rel := strings.Index(src[start:], prefix)
	if rel < 0 {
		return 0, 0, "", false, nil
	}
	begin = start + rel
	afterBracket := begin + len(prefix)
	closeIdx := strings.Index(src[afterBracket:], "]@@")
	if closeIdx < 0 {
		return 0, 0, "", false, errNoClose(kind)
	}
	name = src[afterBracket : afterBracket+closeIdx]
	end = afterBracket + closeIdx + len("]@@")
	return begin, end, name, true, nil
}

func errNoClose(kind string) error {
	return unattendutil.Newf(unattendutil.KindParseError, "splitter.findMarker", "unterminated %s marker", kind)
}

// skipLeadingLineBreak skips whitespace up to and including the first '\n'
// immediately following a SPLITTER_START marker, per spec.md 4.2.
func skipLeadingLineBreak(src string, from int) int {
	i := from
	for i < len(src) {
		c := src[i]
		if c == '\n' {
			return i + 1
		}
		if c == ' ' || c == '\t' || c == '\r' {
			i++
			continue
		}
		break
	}
	return from
}

func validateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return unattendutil.Newf(unattendutil.KindInvalidField, "splitter.validateName", "splitter name %q must be 1..%d bytes", name, maxNameLen)
	}
	if strings.ContainsAny(name, "/\\:\x00") {
		return unattendutil.Newf(unattendutil.KindInvalidField, "splitter.validateName", "splitter name %q contains a forbidden character", name)
	}
	return nil
}
