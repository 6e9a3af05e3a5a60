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
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"

	"vboxunattend/internal/unattend/timezone"
)

// LinuxDetector implements spec.md 4.3.2's ordered attempts over
// .treeinfo, .discinfo, README.diskdefines, .disk/info, with the
// Fedora volume-id special case.
type LinuxDetector struct{}

func (LinuxDetector) Name() string { return "linux" }

var linuxDistroWords = []struct {
	word string
	os   OSType
}{
	{"fedora", OSFedora},
	{"oracle", OSOracle},
	{"centos", OSCentOS},
	{"redhat", OSRedHat},
	{"red hat", OSRedHat},
	{"opensuse", OSOpenSUSE},
	{"linux mint", OSMint},
	{"xubuntu", OSUbuntu},
	{"kubuntu", OSUbuntu},
	{"lubuntu", OSUbuntu},
	{"ubuntu", OSUbuntu},
	{"debian", OSDebian},
}

func matchDistroWord(s string) (OSType, bool) {
	low := strings.ToLower(s)
	for _, w := range linuxDistroWords {
		if strings.Contains(low, w.word) {
			return w.os, true
		}
	}
	return "", false
}

func (LinuxDetector) Detect(fs FileSystem, result *Result) (Outcome, error) {
	if fs.FileExists(".treeinfo") {
		return detectTreeinfo(fs, result)
	}
	if fs.FileExists(".discinfo") {
		return detectDiscinfo(fs, result)
	}
	if fs.FileExists("README.diskdefines") {
		return detectDiskdefines(fs, result)
	}
	if fs.FileExists(".disk/info") {
		return detectDiskInfo(fs, result)
	}
	if strings.HasPrefix(fs.VolumeLabel(), "Fedora-") {
		return detectFedoraVolumeID(fs, result)
	}
	return NotMatched, nil
}

func detectTreeinfo(fs FileSystem, result *Result) (Outcome, error) {
	data, err := fs.ReadFile(".treeinfo")
	if err != nil {
		return NotMatched, err
	}
	sections := parseINI(data)

	archStr := firstNonEmpty(sections["tree"]["arch"], sections["general"]["arch"])
	name := firstNonEmpty(sections["release"]["name"], sections["product"]["name"], sections["general"]["family"])
	ver := firstNonEmpty(sections["release"]["version"], sections["product"]["version"], sections["general"]["version"])

	osType, ok := matchDistroWord(name)
	if !ok {
		return NotMatched, nil
	}
	result.OSType = osType
	result.OSVersion = ver
	result.Arch = timezone.LinuxArchFromString(archStr)
	return Matched, nil
}

func detectDiscinfo(fs FileSystem, result *Result) (Outcome, error) {
	data, err := fs.ReadFile(".discinfo")
	if err != nil {
		return NotMatched, err
	}
	lines := splitLines(string(data))
	if len(lines) < 3 {
		return NotMatched, nil
	}
	productVersion := lines[1]
	arch := lines[2]

	osType, _ := matchDistroWord(productVersion)
	if osType == "" {
		osType = OSRedHat
	}
	result.OSType = osType
	result.OSVersion = extractVersionToken(productVersion)
	result.Arch = timezone.LinuxArchFromString(arch)
	return Matched, nil
}

func detectDiskdefines(fs FileSystem, result *Result) (Outcome, error) {
	data, err := fs.ReadFile("README.diskdefines")
	if err != nil {
		return NotMatched, err
	}
	kv := map[string]string{}
	for _, line := range splitLines(string(data)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#define") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "#define"))
		if len(fields) < 2 {
			continue
		}
		key := strings.ToUpper(fields[0])
		val := strings.Join(fields[1:], " ")
		kv[key] = strings.Trim(val, `"`)
	}
	osType, ok := matchDistroWord(kv["DISKNAME"])
	if !ok {
		return NotMatched, nil
	}
	result.OSType = osType
	result.OSVersion = extractVersionToken(kv["DISKNAME"])
	if arch, ok := kv["ARCH"]; ok {
		result.Arch = timezone.LinuxArchFromString(arch)
	}
	return Matched, nil
}

func detectDiskInfo(fs FileSystem, result *Result) (Outcome, error) {
	data, err := fs.ReadFile(".disk/info")
	if err != nil {
		return NotMatched, err
	}
	product := strings.TrimSpace(string(data))
	osType, ok := matchDistroWord(product)
	if !ok {
		return NotMatched, nil
	}
	result.OSType = osType
	result.OSVersion = extractVersionToken(product)
	if result.Arch == "" || result.Arch == timezone.ArchUnknown {
		if arch, ok := matchArchInVolumeLabel(fs.VolumeLabel()); ok {
			result.Arch = arch
		}
	}
	return Matched, nil
}

// detectFedoraVolumeID parses a Fedora-<flavor>-<arch>-<version> volume
// label, probing the boot loaders for an architecture marker when the
// volume id omits it, per spec.md 4.3.2 item 5.
func detectFedoraVolumeID(fs FileSystem, result *Result) (Outcome, error) {
	label := strings.TrimPrefix(fs.VolumeLabel(), "Fedora-")
	parts := strings.Split(label, "-")
	if len(parts) < 2 {
		return NotMatched, nil
	}
	result.OSType = OSFedora
	result.Flavor = Flavor(parts[0])
	result.OSVersion = parts[len(parts)-1]

	if len(parts) >= 3 {
		result.Arch = timezone.LinuxArchFromString(parts[1])
	}
	if result.Arch == "" || result.Arch == timezone.ArchUnknown {
		if arch, ok := probePEMachineField(fs, "images/pxeboot/vmlinuz"); ok {
			result.Arch = arch
		} else if arch, ok := probePEMachineField(fs, "isolinux/vmlinuz"); ok {
			result.Arch = arch
		} else if fs.FileExists("EFI/BOOT/grubaa64.efi") {
			result.Arch = timezone.ArchARM64
		}
	}
	return Matched, nil
}

// probePEMachineField reads a minimal PE/COFF header (MZ + PE signature +
// Machine field) to classify arch when the volume id is ambiguous, per
// spec.md's explicit carve-out that PE/COFF parsing internals beyond this
// one field are out of scope.
func probePEMachineField(fs FileSystem, path string) (timezone.Arch, bool) {
	if !fs.FileExists(path) {
		return "", false
	}
	data, err := fs.ReadFile(path)
	if err != nil || len(data) < 0x40 {
		return "", false
	}
	if data[0] != 'M' || data[1] != 'Z' {
		return "", false
	}
	peOffset := binary.LittleEndian.Uint32(data[0x3C:0x40])
	if uint64(peOffset)+6 > uint64(len(data)) {
		return "", false
	}
	if !bytes.Equal(data[peOffset:peOffset+4], []byte("PE\x00\x00")) {
		return "", false
	}
	machine := binary.LittleEndian.Uint16(data[peOffset+4 : peOffset+6])
	switch machine {
	case 0x014c: // IMAGE_FILE_MACHINE_I386
		return timezone.ArchX86, true
	case 0x8664: // IMAGE_FILE_MACHINE_AMD64
		return timezone.ArchX64, true
	case 0xAA64: // IMAGE_FILE_MACHINE_ARM64
		return timezone.ArchARM64, true
	default:
		return "", false
	}
}

func matchArchInVolumeLabel(label string) (timezone.Arch, bool) {
	arch := timezone.LinuxArchFromString(label)
	return arch, arch != timezone.ArchUnknown
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitLines(s string) []string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// extractVersionToken pulls the first token that looks like a dotted or
// bare version number out of a free-text product string.
func extractVersionToken(s string) string {
	fields := strings.Fields(s)
	for _, f := range fields {
		if len(f) == 0 {
			continue
		}
		c := f[0]
		if c >= '0' && c <= '9' {
			return strings.Trim(f, ".,")
		}
	}
	return ""
}
