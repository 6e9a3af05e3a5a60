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
	"path"
	"strings"

	"github.com/diskfs/go-diskfs/filesystem"

	"vboxunattend/internal/unattend/unattendutil"
)

// writeFileTo writes content at name on fs, creating any parent
// directories the target filesystem requires first.
func writeFileTo(fs filesystem.FileSystem, name string, content []byte) error {
	dir := path.Dir(name)
	if dir != "." && dir != "/" {
		if err := mkdirAll(fs, dir); err != nil {
			return unattendutil.New(unattendutil.KindIOError, "media.writeFileTo", err)
		}
	}
	f, err := fs.OpenFile(name, os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return unattendutil.New(unattendutil.KindIOError, "media.writeFileTo", err)
	}
	if _, err := f.Write(content); err != nil {
		return unattendutil.New(unattendutil.KindIOError, "media.writeFileTo", err)
	}
	return nil
}

func mkdirAll(fs filesystem.FileSystem, dir string) error {
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur += "/" + p
		if err := fs.Mkdir(cur); err != nil {
			// go-diskfs filesystems generally error if the directory
			// already exists; ignore and keep going since mkdirAll's
			// contract is idempotent.
			continue
		}
	}
	return nil
}
