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

package media

import (
	"os"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"

	"vboxunattend/internal/unattend/unattendutil"
)

// Floppy144Size and Floppy288Size are the two geometries this engine
// authors: 1.44 MB for Windows SIF answer floppies, 2.88 MB for OS/2's
// El-Torito-emulated floppy.
const (
	Floppy144Size = 1474560
	Floppy288Size = 2949120
)

// FloppyWriter builds a FAT12 floppy image file by file. It implements
// splitter.FileWriter so Splitter output can be written straight onto the
// image.
type FloppyWriter struct {
	path string
	fs   filesystem.FileSystem
}

// CreateFloppy creates a new FAT floppy image at path of the given size
// (Floppy144Size or Floppy288Size), overwriting any existing file when
// overwrite is true.
func CreateFloppy(path string, size int64, overwrite bool) (*FloppyWriter, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, unattendutil.Newf(unattendutil.KindIOError, "media.CreateFloppy", "%s already exists and overwrite is false", path)
		}
	}
	d, err := diskfs.Create(path, size, diskfs.SectorSize(512))
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindIOError, "media.CreateFloppy", err)
	}
	fs, err := d.CreateFilesystem(disk.FilesystemSpec{Partition: 0, FSType: filesystem.TypeFat32, VolumeLabel: "VBOXAUX"})
	if err != nil {
		return nil, unattendutil.New(unattendutil.KindIOError, "media.CreateFloppy", err)
	}
	return &FloppyWriter{path: path, fs: fs}, nil
}

// WriteFile writes content at name (root-relative) on the floppy image,
// creating parent directories as needed.
func (w *FloppyWriter) WriteFile(name string, content []byte) error {
	return writeFileTo(w.fs, name, content)
}

func (w *FloppyWriter) Path() string { return w.path }
