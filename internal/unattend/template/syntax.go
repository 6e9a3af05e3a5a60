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

import "vboxunattend/internal/unattend/unattendutil"

// CheckSyntax parses every placeholder in tmpl and verifies the
// conditional stack balances, without resolving any variable or
// predicate name. This is the "parse them (syntax check only)" step
// InstallerFamily.prepareUnattendedScripts performs before a Profile or
// detection result is necessarily available.
func CheckSyntax(tmpl []byte) error {
	src := string(tmpl)
	depth := 0
	pos := 0
	for {
		begin, end, found, err := findPlaceholder(src, pos)
		if err != nil {
			return unattendutil.AtOffset("template.CheckSyntax", pos, err)
		}
		if !found {
			break
		}
		bodyStart := begin + len(placeholderPrefix)
		bodyEnd := end - len(placeholderSuffix)
		ph, err := parsePlaceholder(src[bodyStart:bodyEnd])
		if err != nil {
			return unattendutil.AtOffset("template.CheckSyntax", begin, err)
		}
		switch ph.verb {
		case verbCond:
			depth++
			if depth > MaxConditionalDepth {
				return unattendutil.AtOffset("template.CheckSyntax", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.CheckSyntax", "conditional stack overflow (max depth %d)", MaxConditionalDepth))
			}
		case verbCondElse:
			if depth == 0 {
				return unattendutil.AtOffset("template.CheckSyntax", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.CheckSyntax", "COND_ELSE without matching COND"))
			}
		case verbCondEnd:
			if depth == 0 {
				return unattendutil.AtOffset("template.CheckSyntax", begin,
					unattendutil.Newf(unattendutil.KindParseError, "template.CheckSyntax", "COND_END without matching COND"))
			}
			depth--
		}
		pos = end
	}
	if depth > 0 {
		return unattendutil.AtOffset("template.CheckSyntax", pos,
			unattendutil.Newf(unattendutil.KindParseError, "template.CheckSyntax", "missing %d @@VBOX_COND_END@@", depth))
	}
	return nil
}
