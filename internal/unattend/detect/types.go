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

// Package detect implements the ISO OS-detection pipeline: a chain of
// inspectors (Windows, Linux, OS/2, FreeBSD) run in order over an ISO's
// file tree, each narrowing a shared DetectionResult until one matches.
package detect

import (
	"strings"

	"vboxunattend/internal/unattend/timezone"
)

// OSType identifies a detected guest operating system family and release,
// the way VirtualBox's VBOXOSTYPE enum does, flattened to the cases this
// engine actually branches on.
type OSType string

const (
	OSUnknown OSType = "Unknown"

	OSWindows2000   OSType = "Windows2000"
	OSWindowsXP     OSType = "WindowsXP"
	OSWindows2003   OSType = "Windows2003"
	OSWindowsVista  OSType = "WindowsVista"
	OSWindows7      OSType = "Windows7"
	OSWindows8      OSType = "Windows8"
	OSWindows81     OSType = "Windows81"
	OSWindows10     OSType = "Windows10"
	OSWindows11     OSType = "Windows11"
	OSWindows2008   OSType = "Windows2008"
	OSWindows2012   OSType = "Windows2012"
	OSWindows2016   OSType = "Windows2016"
	OSWindows2019   OSType = "Windows2019"
	OSWindows2022   OSType = "Windows2022"
	OSWindowsNT3x   OSType = "WindowsNT3x"
	OSWindowsNT4    OSType = "WindowsNT4"

	OSDebian  OSType = "Debian"
	OSUbuntu  OSType = "Ubuntu"
	OSMint    OSType = "LinuxMint"
	OSRedHat  OSType = "RedHat"
	OSCentOS  OSType = "CentOS"
	OSFedora  OSType = "Fedora"
	OSOracle  OSType = "Oracle"
	OSOpenSUSE OSType = "OpenSUSE"

	OSOS2Generic OSType = "OS2"
	OSOS2Warp45  OSType = "OS2Warp45"
	OSArcaOS     OSType = "ArcaOS"
	OSeComStation OSType = "eComStation"

	OSFreeBSD OSType = "FreeBSD"
)

// Flavor is a free-form edition/variant string (e.g. "Server",
// "Workstation"), kept as a string per spec.md rather than an enum since
// the source material (EDITIONID, volume-id heuristics) is itself
// free-form.
type Flavor string

// ImageInfo describes one selectable install image inside a Windows
// install.wim, per spec.md 3 / 4.3.1.
type ImageInfo struct {
	Index           int
	Name            string
	Version         string
	Arch            timezone.Arch
	Flavor          Flavor
	Languages       []string
	DefaultLanguage string
	OSType          OSType
}

// Result is the output of the detector chain: the detected OS identity,
// its derived properties, and (for Windows) the list of selectable
// images. Hints carries free-form key=value pairs individual installer
// variants need (e.g. OS2SE20.SRC's parent directory).
type Result struct {
	OSType    OSType
	OSVersion string
	Flavor    Flavor
	Arch      timezone.Arch
	Languages []string
	Hints     map[string]string
	Images    []ImageInfo
}

// NewResult returns a zero Result ready for a detector chain to narrow.
func NewResult() *Result {
	return &Result{Hints: map[string]string{}}
}

// Matched reports whether a detector chain produced a definite OS type.
func (r *Result) Matched() bool { return r.OSType != OSUnknown && r.OSType != "" }

// GuestOSVersion returns the detected version string, e.g. "10.0.19045".
func (r *Result) GuestOSVersion() string { return r.OSVersion }

// GuestOSMajorVersion returns the substring of OSVersion up to (not
// including) the first '.', or the whole string if there is no '.'.
func (r *Result) GuestOSMajorVersion() string {
	if i := strings.IndexByte(r.OSVersion, '.'); i >= 0 {
		return r.OSVersion[:i]
	}
	return r.OSVersion
}

// ImageByIndex returns the image with the given 1-based index, if present.
func (r *Result) ImageByIndex(idx int) (ImageInfo, bool) {
	for _, img := range r.Images {
		if img.Index == idx {
			return img, true
		}
	}
	return ImageInfo{}, false
}

// IsWindowsFamily reports whether OSType names a Windows release.
func (t OSType) IsWindowsFamily() bool {
	return strings.HasPrefix(string(t), "Windows")
}

// IsOS2Family reports whether OSType names an OS/2-derived release.
func (t OSType) IsOS2Family() bool {
	switch t {
	case OSOS2Generic, OSOS2Warp45, OSArcaOS, OSeComStation:
		return true
	default:
		return false
	}
}

// IsWindowsVistaPlusFamily reports whether OSType names a Windows release
// using the Vista-era XML unattend answer file (as opposed to the NT4/2000/
// XP/2003 SIF format).
func (t OSType) IsWindowsVistaPlusFamily() bool {
	switch t {
	case OSWindowsVista, OSWindows7, OSWindows8, OSWindows81, OSWindows10, OSWindows11,
		OSWindows2008, OSWindows2012, OSWindows2016, OSWindows2019, OSWindows2022:
		return true
	default:
		return false
	}
}

// IsLinuxFamily reports whether OSType names a Linux distribution.
func (t OSType) IsLinuxFamily() bool {
	switch t {
	case OSDebian, OSUbuntu, OSMint, OSRedHat, OSCentOS, OSFedora, OSOracle, OSOpenSUSE:
		return true
	default:
		return false
	}
}
