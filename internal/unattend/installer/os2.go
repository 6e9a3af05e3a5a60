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
	"errors"

	"vboxunattend/internal/unattend/unattendutil"
)

// ebpbLen is sizeof(FATEBPB): the 25-byte DOS 3.31 BPB, then drive number,
// reserved, extended boot signature, volume serial (4), volume label (11),
// filesystem type (8).
const ebpbLen = 25 + 26

const (
	ebpbSignature       = 0x29
	ebpbOffset          = 3 + 8               // offset of the EBPB within a boot sector, per spec.md §4.4.1
	ebpbSignatureOffset = ebpbOffset + 25 + 2 // extended boot signature: after the BPB, drive number and reserved byte
)

var (
	ebpbTypeFAT   = [8]byte{'F', 'A', 'T', ' ', ' ', ' ', ' ', ' '}
	ebpbTypeFAT12 = [8]byte{'F', 'A', 'T', '1', '2', ' ', ' ', ' '}
)

// LiftOS2BootSector scans sysinstx (the contents of <tree>/DISK_0/SYSINSTX.COM
// inside the installation ISO) in 8 KiB windows with a 512 B overlap,
// per spec.md §4.4.1, looking for a 512-byte candidate boot sector: a DOS
// signature (0x55 0xAA) at the end, a short jump (0xEB) far enough past
// the EBPB at the start, an alphanumeric OEM-name start, and a
// FATEBPB-shaped structure at offset 0x00B with extended signature 0x29
// and filesystem type "FAT     " or "FAT12   ".
func LiftOS2BootSector(sysinstx []byte) ([]byte, error) {
	const windowSize = 8 << 10
	overlap := make([]byte, 512)

	for base := 0; base < len(sysinstx); base += windowSize {
		end := base + windowSize
		if end > len(sysinstx) {
			end = len(sysinstx)
		}
		window := append(append([]byte(nil), overlap...), sysinstx[base:end]...)
		if cand, ok := scanForBootSector(window); ok {
			return cand, nil
		}
		if len(sysinstx[base:end]) >= 512 {
			copy(overlap, sysinstx[end-512:end])
		}
	}
	return nil, unattendutil.New(unattendutil.KindParseError, "installer.LiftOS2BootSector", errors.New("unable to locate bootsector template in SYSINSTX.COM"))
}

func scanForBootSector(buf []byte) ([]byte, bool) {
	for start := 0; start+512 <= len(buf); start++ {
		sector := buf[start : start+512]
		if sector[0x1FE] != 0x55 || sector[0x1FF] != 0xAA {
			continue
		}
		if sector[0] != 0xEB {
			continue
		}
		if int(sector[1]) < 3+8+ebpbLen-2 {
			continue
		}
		if !isAlnumByte(sector[3]) || !isAlnumByte(sector[4]) {
			continue
		}
		if sector[ebpbSignatureOffset] != ebpbSignature {
			continue
		}
		var fsType [8]byte
		copy(fsType[:], sector[ebpbOffset+ebpbLen-8:ebpbOffset+ebpbLen])
		if fsType != ebpbTypeFAT && fsType != ebpbTypeFAT12 {
			continue
		}
		out := make([]byte, 512)
		copy(out, sector)
		return out, true
	}
	return nil, false
}

func isAlnumByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// PatchOS2BootSectorGeometry copies the EBPB from the target floppy's
// existing first sector into the lifted candidate, preserving the
// target's geometry while keeping SYSINSTX.COM's boot code.
func PatchOS2BootSectorGeometry(candidate, targetFirstSector []byte) ([]byte, error) {
	if len(candidate) != 512 || len(targetFirstSector) != 512 {
		return nil, unattendutil.New(unattendutil.KindParseError, "installer.PatchOS2BootSectorGeometry", errors.New("boot sector must be exactly 512 bytes"))
	}
	out := make([]byte, 512)
	copy(out, candidate)
	copy(out[ebpbOffset:ebpbOffset+ebpbLen], targetFirstSector[ebpbOffset:ebpbOffset+ebpbLen])
	return out, nil
}

// os2LdrPatchOffset/os2LdrJumpOffset are relative to the start of the
// matched pattern (0x840e-0x840a and 0x8482-0x840a in the original's
// addressing), per UnattendedOs2Installer.cpp's patchOs2Ldr.
const (
	os2LdrPatchOffset = 0x840e - 0x840a
	os2LdrJumpOffset  = 0x8482 - 0x840a
)

// os2LdrPattern/os2LdrMask match the ACPI-2-era IDIV timing-calibration
// loop in OS2LDR that divides by a PIT tick delta liable to be zero on
// fast CPUs ("division by chainsaw"). Bytes under a 0x00 mask byte are
// wildcards (call-site displacements, loop counts).
var os2LdrPattern = []byte{
	0x60,
	0x1e,
	0x0e,
	0x1f,
	0x9c,
	0xfa,
	0xb0, 0x34,
	0xe6, 0x43,
	0xe8, 0x00, 0x00,
	0x32, 0xc0,
	0xe6, 0x40,
	0xe8, 0x00, 0x00,
	0xe6, 0x40,
	0xe8, 0x00, 0x00,
	0xb0, 0x00,
	0xe6, 0x43,
	0xe8, 0x00, 0x00,
	0xe4, 0x40,
	0xe8, 0x00, 0x00,
	0x8a, 0xd8,
	0xe4, 0x40,
	0x8a, 0xf8,
	0xb0, 0x00,
	0xe6, 0x43,
	0xe8, 0x00, 0x00,
	0xe4, 0x40,
	0xe8, 0x00, 0x00,
	0x8a, 0xc8,
	0xe4, 0x40,
	0x8a, 0xe8,
	0xbe, 0x00, 0x00,
	0x87, 0xdb,
	0x4e,
	0x75, 0xfd,
	0xb0, 0x00,
	0xe6, 0x43,
	0xe8, 0x00, 0x00,
	0xe4, 0x40,
	0xe8, 0x00, 0x00,
	0x8a, 0xd0,
	0xe4, 0x40,
	0x8a, 0xf0,
	0x9d,
	0x2b, 0xd9,
	0x2b, 0xca,
	0x2b, 0xcb,
	0x87, 0xca,
	0xb8, 0x00, 0x00,
	0xf7, 0xea,
	0xbb, 0x00, 0x00,
	0xf7, 0xfb,
	0x33, 0xd2,
	0xbb, 0x00, 0x00,
	0x93,
	0xf7, 0xfb,
	0x0b, 0xd2,
	0x74, 0x01,
	0x40,
	0x40,
	0xa3, 0x00, 0x00,
	0x1f,
	0x61,
	0xc3,
}

var os2LdrMask = buildOS2LdrMask()

func buildOS2LdrMask() []byte {
	// Every byte is significant except call-site displacements and
	// embedded immediate loop counts, which s_abVariant1Mask (the
	// original's pattern mask) zeroes out.
	wildcardIndexes := map[int]bool{
		11: true, 12: true, // call disp
		18: true, 19: true,
		23: true, 24: true,
		30: true, 31: true,
		35: true, 36: true,
		48: true, 49: true,
		53: true, 54: true,
		62: true, 63: true, // mov si, imm16
		74: true, 75: true,
		79: true, 80: true,
		97: true, 98: true, // mov ax, imm16
		102: true, 103: true, // mov bx, imm16
		109: true, 110: true, // mov bx, imm16
		121: true, 122: true, // mov word [addr]
	}
	mask := make([]byte, len(os2LdrPattern))
	for i := range mask {
		if wildcardIndexes[i] {
			mask[i] = 0x00
		} else {
			mask[i] = 0xFF
		}
	}
	return mask
}

// PatchOS2LDR finds the IDIV timing-loop pattern in data (the bytes of
// DISK_0/OS2LDR) and short-circuits it: it overwrites the pattern's
// pushfw/cli/mov/out prelude at os2LdrPatchOffset with `mov ax, 0x1000`
// followed by a near jump straight to the loop's result-store code,
// avoiding the divide-by-zero hang spec.md §4.4 describes. Returns the
// patched copy; data is not modified in place.
func PatchOS2LDR(data []byte) ([]byte, error) {
	hit, ok := findCodePattern(data, os2LdrPattern, os2LdrMask)
	if !ok {
		return nil, unattendutil.New(unattendutil.KindParseError, "installer.PatchOS2LDR", errors.New("no OS2LDR timing-loop pattern match"))
	}

	out := make([]byte, len(data))
	copy(out, data)

	patchAt := hit + os2LdrPatchOffset
	jumpTarget := hit + os2LdrJumpOffset

	out[patchAt] = 0xb8 // mov ax, 0x1000
	out[patchAt+1] = 0x00
	out[patchAt+2] = 0x10

	relTarget := patchAt + 3 + 3 // end of the 3-byte jmp instruction
	offRel16 := uint16(jumpTarget - relTarget)
	out[patchAt+3] = 0xe9 // jmp rel16
	out[patchAt+4] = byte(offRel16)
	out[patchAt+5] = byte(offRel16 >> 8)
	out[patchAt+6] = 0xcc
	out[patchAt+7] = 0xcc

	return out, nil
}

// findCodePattern slides pattern/mask over data and returns the offset of
// the first byte-exact (mask 0xFF) / wildcard (mask 0x00) match.
func findCodePattern(data, pattern, mask []byte) (int, bool) {
	n := len(pattern)
	if n == 0 || n > len(data) {
		return 0, false
	}
	for start := 0; start+n <= len(data); start++ {
		match := true
		for i := 0; i < n; i++ {
			if mask[i] == 0 {
				continue
			}
			if data[start+i] != pattern[i] {
				match = false
				break
			}
		}
		if match {
			return start, true
		}
	}
	return 0, false
}

// os2AuxFloppyMandatoryFiles is the curated set spec.md §6 names, beyond
// whatever the response-file splitter emits.
var os2AuxFloppyMandatoryFiles = []string{
	"OS2BOOT",
	"OS2LDR",
	"OS2LDR.MSG",
	"OS2KRNL",
	"OS2DUMP",
	"CONFIG.SYS",
	"VBOXCID.CMD",
}

// OS2DiskFileName picks the first existing candidate name for a file slot
// that may differ between OS/2 variants (e.g. OS2KRNL vs OS2KRNLI),
// searching DISK_0 through DISK_2 in order, per spec.md §6.
func OS2DiskFileName(exists func(diskIndex int, name string) bool, candidates []string) (diskIndex int, name string, ok bool) {
	for disk := 0; disk <= 2; disk++ {
		for _, c := range candidates {
			if exists(disk, c) {
				return disk, c, true
			}
		}
	}
	return 0, "", false
}
