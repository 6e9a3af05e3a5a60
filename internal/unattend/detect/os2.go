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
	"encoding/binary"
	"fmt"
	"strings"
)

// OS2Detector looks for OS2SE20.SRC (the classic OS/2 install-source
// marker) and narrows between ArcaOS, eComStation, and plain OS/2 Warp
// 4.5 via SYSLEVEL.OS2 content, per spec.md's OS/2 coverage.
type OS2Detector struct{}

func (OS2Detector) Name() string { return "os2" }

func (OS2Detector) Detect(fs FileSystem, result *Result) (Outcome, error) {
	srcPath, ok := findOS2SE20SRC(fs)
	if !ok {
		return NotMatched, nil
	}
	result.Hints["OS2SE20.SRC"] = srcPath

	osType := OSOS2Generic
	if data, err := readSyslevelFile(fs); err == nil {
		osType = os2TypeFromSyslevel(data)
	}
	result.OSType = osType
	return Matched, nil
}

// findOS2SE20SRC probes the conventional locations for OS2SE20.SRC, the
// file VirtualBox's own OS/2 installer uses as its image-tree marker.
func findOS2SE20SRC(fs FileSystem) (string, bool) {
	for _, path := range []string{"OS2SE20.SRC", "OS2IMAGE/OS2SE20.SRC", "DISK1/OS2SE20.SRC"} {
		if fs.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// readSyslevelFile tries the conventional SYSLEVEL.OS2 locations: the
// original's official IBM media carries it on disk 2 (Warp3 kept it on
// disk 1), ArcaOS/eComStation media typically stage it under OS2IMAGE/.
func readSyslevelFile(fs FileSystem) ([]byte, error) {
	for _, path := range []string{"OS2IMAGE/SYSLEVEL.OS2", "DISK_2/SYSLEVEL.OS2", "DISK_1/SYSLEVEL.OS2"} {
		if fs.FileExists(path) {
			return fs.ReadFile(path)
		}
	}
	return nil, fmt.Errorf("no SYSLEVEL.OS2 found")
}

// os2SyslevelHeaderSize and os2SyslevelEntrySize are the on-disk sizes of
// OS2SYSLEVELHDR and OS2SYSLEVELENTRY (both #pragma pack(1) in the
// original implementation): 0x25 and 0x80 bytes respectively.
const (
	os2SyslevelHeaderSize = 0x25
	os2SyslevelEntrySize  = 0x80
)

// os2TypeFromSyslevel narrows the generic OS/2 detection to ArcaOS,
// eComStation, or (by parsing the real SYSLEVEL.OS2 binary header and
// table entry, matching the version-compare ladder the original uses)
// Warp 4.5. Media whose SYSLEVEL.OS2 is absent, truncated, or doesn't
// parse as a well-formed syslevel file stays at the generic OS/2 type
// rather than being guessed at.
func os2TypeFromSyslevel(data []byte) OSType {
	lower := strings.ToLower(string(data))
	switch {
	case strings.Contains(lower, "arcaos"):
		return OSArcaOS
	case strings.Contains(lower, "ecomstation") || strings.Contains(lower, "ecs"):
		return OSeComStation
	}

	ver, ok := parseOS2SyslevelVersion(data)
	if !ok {
		return OSOS2Generic
	}
	if versionAtLeast(ver, 4, 50) {
		return OSOS2Warp45
	}
	return OSOS2Generic
}

// parseOS2SyslevelVersion reads the OS2SYSLEVELHDR/OS2SYSLEVELENTRY pair
// out of data and returns the (major, minor) version pair it encodes, the
// way UnattendedImpl.cpp's syslevel reader does: bVersion's high nibble is
// the major version, its low nibble plus bModify form the minor, e.g.
// bVersion=0x45, bModify=2 => "4.52".
func parseOS2SyslevelVersion(data []byte) (os2Version, bool) {
	if len(data) < os2SyslevelHeaderSize {
		return os2Version{}, false
	}
	uMinusOne := binary.LittleEndian.Uint16(data[0x00:0x02])
	signature := string(data[0x02:0x0a])
	syslevelFileVer := binary.LittleEndian.Uint16(data[0x0f:0x11])
	offTable := binary.LittleEndian.Uint32(data[0x21:0x25])
	if uMinusOne != 0xFFFF || syslevelFileVer != 1 || signature != "SYSLEVEL" {
		return os2Version{}, false
	}
	if uint64(offTable) >= uint64(len(data)) || uint64(offTable)+os2SyslevelEntrySize > uint64(len(data)) {
		return os2Version{}, false
	}

	entry := data[offTable : uint64(offTable)+os2SyslevelEntrySize]
	bVersion := entry[0x03]
	bModify := entry[0x04]
	bRefresh := entry[0x70]

	major := bVersion >> 4
	minorHi := bVersion & 0xf
	if major >= 10 || minorHi >= 10 || bModify >= 10 || bRefresh >= 10 || bVersion == 0 {
		return os2Version{}, false
	}
	return os2Version{major: int(major), minor: int(minorHi)*10 + int(bModify)}, true
}

type os2Version struct {
	major int
	minor int
}

func versionAtLeast(v os2Version, major, minor int) bool {
	if v.major != major {
		return v.major > major
	}
	return v.minor >= minor
}
