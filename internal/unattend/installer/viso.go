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
	"fmt"

	"github.com/google/uuid"
)

// VISOBuilder accumulates the argv-style arguments of a virtual-ISO
// descriptor, per spec.md §6: a random file-marker UUID first, then
// mode/import/push-pop directives. The ISO-maker backend that actually
// assembles bytes from this descriptor is external (spec.md's non-goal on
// ISO9660 parsing internals); this builder only produces the argv.
type VISOBuilder struct {
	argv []string
}

// NewVISOBuilder starts a descriptor with the required random file-marker
// argument and the fixed file/dir mode directives.
func NewVISOBuilder() *VISOBuilder {
	b := &VISOBuilder{}
	b.argv = append(b.argv, "--file-marker="+uuid.NewString())
	b.argv = append(b.argv, "--file-mode=0444", "--dir-mode=0555")
	return b
}

// ImportISO appends the directive to lazily import every file of the
// original installation ISO at path.
func (b *VISOBuilder) ImportISO(path string) *VISOBuilder {
	b.argv = append(b.argv, "--import-iso", path)
	return b
}

// Remove appends a directive to drop isoPath (e.g. the stock boot-menu
// config being replaced) from the imported tree.
func (b *VISOBuilder) Remove(isoPath string) *VISOBuilder {
	b.argv = append(b.argv, fmt.Sprintf("--remove=%s", isoPath))
	return b
}

// AddFile stages a local file at destPath inside the resulting ISO tree
// (used for the rewritten boot-menu config and the expanded answer file).
func (b *VISOBuilder) AddFile(destPath, localPath string) *VISOBuilder {
	b.argv = append(b.argv, fmt.Sprintf("%s=%s", destPath, localPath))
	return b
}

// PushISO begins a --push-iso/--pop block mounting guestISOPath's content
// under mountPoint (e.g. "/vboxadditions", "/vboxvalidationkit").
func (b *VISOBuilder) PushISO(mountPoint, guestISOPath string) *VISOBuilder {
	b.argv = append(b.argv, "--push-iso", guestISOPath, mountPoint)
	return b
}

// Pop closes the most recently opened PushISO block.
func (b *VISOBuilder) Pop() *VISOBuilder {
	b.argv = append(b.argv, "--pop")
	return b
}

// Argv returns the accumulated argument vector.
func (b *VISOBuilder) Argv() []string { return append([]string(nil), b.argv...) }
