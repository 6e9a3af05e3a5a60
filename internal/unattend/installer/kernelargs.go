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

package installer

import (
	"path"
	"strings"
)

// RewriteKernelArgs implements spec.md §4.4's kernel-line editing
// algorithm: tokenize the parameter tail, delete tokens matching any of
// removeGlobs (shell-glob-style), then append effective extra parameters
// (override if non-empty, else fallback), ensuring exactly one separating
// space. line is the full menu line including any "append"/"kernel"
// keyword prefix; prefixEnd is the byte offset where the parameter tail
// begins.
func RewriteKernelArgs(line string, prefixEnd int, removeGlobs []string, override, fallback string) string {
	prefix := line[:prefixEnd]
	tail := strings.TrimRight(line[prefixEnd:], "\r\n")

	tokens := strings.Fields(tail)
	kept := tokens[:0]
	for _, tok := range tokens {
		if matchesAnyGlob(tok, removeGlobs) {
			continue
		}
		kept = append(kept, tok)
	}

	extra := override
	if extra == "" {
		extra = fallback
	}
	if extra != "" {
		kept = append(kept, strings.Fields(extra)...)
	}

	if len(kept) == 0 {
		return strings.TrimRight(prefix, " ")
	}
	return strings.TrimRight(prefix, " ") + " " + strings.Join(kept, " ")
}

// matchesAnyGlob reports whether tok matches any of patterns under
// shell-glob rules (path.Match -- '*', '?', '[...]').
func matchesAnyGlob(tok string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, tok); err == nil && ok {
			return true
		}
		// path.Match's "*" does not cross a literal '=' specially, but a
		// pattern like "rd.live.check*" should also match "rd.live.check=0"
		// style key=value tokens; path.Match already handles that since
		// '=' is an ordinary rune to it, so no extra case is needed here.
	}
	return false
}

// KernelParamName returns the full kernel-parameter token this style uses
// to reference answerFile, e.g. KernelParamKsCdrom + "ks.cfg" ->
// "ks=cdrom:/ks.cfg".
func KernelParamName(style KernelParamStyle, answerFile string) string {
	switch style {
	case KernelParamKsCdrom:
		return "ks=cdrom:/" + answerFile
	case KernelParamInstKs:
		return "inst.ks=cdrom:/" + answerFile
	case KernelParamPreseed:
		return "preseed/file=/cdrom/" + answerFile
	default:
		return ""
	}
}
