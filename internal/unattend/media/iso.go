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

// Package media is the external-capability-provider boundary for
// ISO9660/FAT media reading and authoring (spec.md's explicit non-goal on
// "ISO9660 / FAT / WIM / PE/COFF parsing internals"). It wraps
// github.com/diskfs/go-diskfs so the rest of the engine never imports it
// directly.
package media

import (
	"io"
	"os"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/unattendutil"
)

// ISOReader is a read-only facade over an ISO9660 image implementing
// detect.FileSystem, so the detector chain never touches go-diskfs types.
type ISOReader struct {
	fs    filesystem.FileSystem
	label string
}

// OpenISO opens path read-only and returns a facade over its ISO9660
// filesystem.
func OpenISO(path string) (*ISOReader, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindMissingFile, "media.OpenISO", err)
	}
	fs, err := d.GetFilesystem(0)
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindIOError, "media.OpenISO", err)
	}
	label := ""
	if iso, ok := fs.(*iso9660.FileSystem); ok {
		label = iso.Label()
	}
	return &ISOReader{fs: fs, label: label}, nil
}

var _ detect.FileSystem = (*ISOReader)(nil)

func (r *ISOReader) VolumeLabel() string { return r.label }

func (r *ISOReader) FileExists(path string) bool {
	f, err := r.fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return false
	}
	if closer, ok := f.(io.Closer); ok {
		closer.Close()
	}
	return true
}

func (r *ISOReader) ReadFile(path string) ([]byte, error) {
	f, err := r.fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindMissingFile, "media.ReadFile", err)
	}
	defer func() {
		if closer, ok := f.(io.Closer); ok {
			closer.Close()
		}
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindIOError, "media.ReadFile", err)
	}
	return data, nil
}

// ReadDir lists entries of a directory inside the ISO, for installers
// that need to pick "the first existing name in each slot" (OS/2's
// DISK_0..DISK_2 convention).
func (r *ISOReader) ReadDir(path string) ([]string, error) {
	entries, err := r.fs.ReadDir(path)
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindIOError, "media.ReadDir", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
