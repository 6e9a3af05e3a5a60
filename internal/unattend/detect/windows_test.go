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
	"testing"

	"github.com/stretchr/testify/require"

	"vboxunattend/internal/unattend/timezone"
)

func buildFakeWIM(xmlBlob []byte) []byte {
	const descOffset = 0x48
	header := make([]byte, 0xD0)
	copy(header, "MSWIM\x00\x00\x00")
	binary.LittleEndian.PutUint64(header[descOffset:], uint64(len(xmlBlob)))
	binary.LittleEndian.PutUint64(header[descOffset+8:], uint64(len(header)))
	return append(header, xmlBlob...)
}

const fakeWindows10XML = `<WIM><IMAGE INDEX="1">
  <NAME>Windows 10 Pro</NAME>
  <WINDOWS>
    <ARCH>9</ARCH>
    <EDITIONID>Professional</EDITIONID>
    <VERSION><MAJOR>10</MAJOR><MINOR>0</MINOR><BUILD>19045</BUILD></VERSION>
    <LANGUAGES><LANGUAGE>en-US</LANGUAGE><DEFAULT>en-US</DEFAULT></LANGUAGES>
  </WINDOWS>
</IMAGE></WIM>`

func TestWindowsDetectorFromWIM(t *testing.T) {
	fs := memFS{files: map[string][]byte{
		"sources/install.wim": buildFakeWIM([]byte(fakeWindows10XML)),
	}}
	d := WindowsDetector{}
	result := NewResult()
	outcome, err := d.Detect(fs, result)
	require.NoError(t, err)
	require.Equal(t, Matched, outcome)
	require.Equal(t, OSWindows10, result.OSType)
	require.Len(t, result.Images, 1)
	require.Equal(t, timezone.ArchX64, result.Images[0].Arch)
	require.Equal(t, "Windows 10 Pro", result.Images[0].Name)
}

func TestWindowsDetectorWin11ByBuild(t *testing.T) {
	xml := `<WIM><IMAGE INDEX="1">
  <DISPLAYNAME>Windows 11 Pro</DISPLAYNAME>
  <WINDOWS>
    <ARCH>9</ARCH>
    <VERSION><MAJOR>10</MAJOR><MINOR>0</MINOR><BUILD>22631</BUILD></VERSION>
  </WINDOWS>
</IMAGE></WIM>`
	fs := memFS{files: map[string][]byte{"sources/install.wim": buildFakeWIM([]byte(xml))}}
	result := NewResult()
	outcome, err := (WindowsDetector{}).Detect(fs, result)
	require.NoError(t, err)
	require.Equal(t, Matched, outcome)
	require.Equal(t, OSWindows11, result.OSType)
	require.Equal(t, "Windows 11 Pro", result.Images[0].Name)
}

func TestWindowsDetectorLegacyHiveSysInf(t *testing.T) {
	fs := memFS{files: map[string][]byte{
		"I386/HIVESYS.INF": []byte("[Version]\nDriverVer=06/21/2001,5.1.2600.0\n"),
	}}
	result := NewResult()
	outcome, err := (WindowsDetector{}).Detect(fs, result)
	require.NoError(t, err)
	require.Equal(t, Matched, outcome)
	require.Equal(t, OSWindowsXP, result.OSType)
	require.Equal(t, timezone.ArchX86, result.Arch)
}

func TestWindowsDetectorNoMatch(t *testing.T) {
	fs := memFS{files: map[string][]byte{}}
	result := NewResult()
	outcome, err := (WindowsDetector{}).Detect(fs, result)
	require.NoError(t, err)
	require.Equal(t, NotMatched, outcome)
}
