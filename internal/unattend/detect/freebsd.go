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

package detect

import (
	"strings"

	"vboxunattend/internal/unattend/timezone"
)

// FreeBSDDetector matches on the .profile marker FreeBSD installation
// media carries at the ISO root, per spec.md's FreeBSD coverage.
type FreeBSDDetector struct{}

func (FreeBSDDetector) Name() string { return "freebsd" }

func (FreeBSDDetector) Detect(fs FileSystem, result *Result) (Outcome, error) {
	if !fs.FileExists(".profile") {
		return NotMatched, nil
	}
	data, err := fs.ReadFile(".profile")
	if err != nil {
		return NotMatched, err
	}
	if !strings.Contains(string(data), "FreeBSD") {
		return NotMatched, nil
	}
	result.OSType = OSFreeBSD
	if fs.FileExists("bin/amd64") || strings.Contains(fs.VolumeLabel(), "amd64") {
		result.Arch = timezone.ArchX64
	}
	return Matched, nil
}
