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

import "strings"

const rewrittenDefaultLabel = "vboxauto"

// RewriteMenuDefault implements spec.md §4.4's menu-default rewriting:
// find the isolinux/syslinux "label" block whose text contains "install"
// (falling back to "live" if none does), rename it to a synthetic unique
// label, point every "default" directive at that label, apply a kernel
// parameter rewrite to its "append" line (or its "kernel" line when the
// block has no "append" line) via editKernelLine, and prepend a "default"
// line if the file had none.
//
// cfg is the full boot-menu config file content. editKernelLine is called
// with each "append " line found inside the chosen label block (each
// "kernel " line instead when the block has no "append " line) and must
// return the rewritten line (without trailing newline).
func RewriteMenuDefault(cfg string, editKernelLine func(line string) string) string {
	lines := strings.Split(cfg, "\n")

	chosen := findLabelBlock(lines, "install")
	if chosen < 0 {
		chosen = findLabelBlock(lines, "live")
	}
	if chosen < 0 {
		return cfg
	}

	lines[chosen] = "label " + rewrittenDefaultLabel

	hadDefault := false
	blockEnd := nextLabelOrEOF(lines, chosen+1)
	editKeyword := "kernel "
	for i := chosen + 1; i < blockEnd; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "append ") {
			editKeyword = "append "
			break
		}
	}
	for i := chosen + 1; i < blockEnd; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), editKeyword) {
			lines[i] = editKernelLine(lines[i])
		}
	}

	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "default ") || trimmed == "default" {
			lines[i] = "default " + rewrittenDefaultLabel
			hadDefault = true
		}
	}
	if !hadDefault {
		lines = append([]string{"default " + rewrittenDefaultLabel}, lines...)
	}

	return strings.Join(lines, "\n")
}

// findLabelBlock returns the index of the "label ..." line whose block
// (up to the next "label" line or EOF) contains keyword case-
// insensitively anywhere in its text, or -1 if none does.
func findLabelBlock(lines []string, keyword string) int {
	keyword = strings.ToLower(keyword)
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if !strings.HasPrefix(trimmed, "label ") {
			continue
		}
		end := nextLabelOrEOF(lines, i+1)
		block := strings.ToLower(strings.Join(lines[i:end], "\n"))
		if strings.Contains(block, keyword) {
			return i
		}
	}
	return -1
}

func nextLabelOrEOF(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "label ") {
			return i
		}
	}
	return len(lines)
}
