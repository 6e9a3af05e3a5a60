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

// FileSystem is the narrow read-only view of an ISO9660 file tree a
// detector needs. The media package's go-diskfs-backed reader implements
// it; tests back it with an in-memory map. Detectors never touch
// ISO9660/FAT parsing internals directly, per spec.md's explicit
// non-goal on treating those as external capability providers.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	FileExists(path string) bool
	VolumeLabel() string
}
