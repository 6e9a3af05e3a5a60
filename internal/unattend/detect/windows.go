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
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"vboxunattend/internal/unattend/timezone"
)

// WindowsDetector implements spec.md 4.3.1: install.wim XML metadata
// first, then the idwbinfo.txt/HIVESYS.INF/PRODSPEC.INI/TXTSETUP.SIF
// fallback chain for pre-WIM media.
type WindowsDetector struct{}

func (WindowsDetector) Name() string { return "windows" }

const maxWIMXMLSize = 32 << 20 // 32 MiB cap, per spec.md 4.3.1

// wimHeader is the subset of the WIM file header needed to locate the
// embedded uncompressed XML metadata blob: an 8-byte magic, then (at the
// fixed offset the WIM on-disk header uses) a resource descriptor
// giving the blob's offset and size. Compressed XML is explicitly out of
// scope per spec.md.
type wimHeader struct {
	xmlOffset uint64
	xmlSize   uint64
}

func parseWIMHeader(data []byte) (wimHeader, error) {
	if len(data) < 0xD0 || string(data[0:8]) != "MSWIM\x00\x00\x00" {
		return wimHeader{}, fmt.Errorf("not a WIM file (bad magic)")
	}
	// The XML metadata resource descriptor lives at offset 0x48 of the
	// 0xD0-byte WIM header: a 7-byte LE size followed by a flags byte,
	// then the LE64 offset.
	const descOffset = 0x48
	if len(data) < descOffset+24 {
		return wimHeader{}, fmt.Errorf("WIM header too short for XML descriptor")
	}
	size := binary.LittleEndian.Uint64(data[descOffset:descOffset+8]) & 0x00FFFFFFFFFFFFFF
	offset := binary.LittleEndian.Uint64(data[descOffset+8 : descOffset+16])
	return wimHeader{xmlOffset: offset, xmlSize: size}, nil
}

type wimXMLDoc struct {
	XMLName xml.Name    `xml:"WIM"`
	Images  []wimXMLImg `xml:"IMAGE"`
}

type wimXMLImg struct {
	Index       int    `xml:"INDEX,attr"`
	Name        string `xml:"NAME"`
	DisplayName string `xml:"DISPLAYNAME"`
	Flags       string `xml:"FLAGS"`
	Windows     struct {
		Arch      int    `xml:"ARCH"`
		EditionID string `xml:"EDITIONID"`
		Version   struct {
			Major   int `xml:"MAJOR"`
			Minor   int `xml:"MINOR"`
			Build   int `xml:"BUILD"`
			SPBuild int `xml:"SPBUILD"`
		} `xml:"VERSION"`
		Languages struct {
			Language []string `xml:"LANGUAGE"`
			Default  string   `xml:"DEFAULT"`
		} `xml:"LANGUAGES"`
	} `xml:"WINDOWS"`
}

func (WindowsDetector) Detect(fs FileSystem, result *Result) (Outcome, error) {
	if fs.FileExists("sources/install.wim") {
		return detectFromWIM(fs, result)
	}
	return detectFromLegacyWindowsFiles(fs, result)
}

func detectFromWIM(fs FileSystem, result *Result) (Outcome, error) {
	raw, err := fs.ReadFile("sources/install.wim")
	if err != nil {
		return NotMatched, err
	}
	hdr, err := parseWIMHeader(raw)
	if err != nil {
		return NotMatched, err
	}
	if hdr.xmlSize == 0 || hdr.xmlSize > maxWIMXMLSize {
		return NotMatched, fmt.Errorf("install.wim XML metadata missing or too large (%d bytes)", hdr.xmlSize)
	}
	if hdr.xmlOffset+hdr.xmlSize > uint64(len(raw)) {
		return NotMatched, fmt.Errorf("install.wim XML metadata descriptor out of range")
	}
	blob := raw[hdr.xmlOffset : hdr.xmlOffset+hdr.xmlSize]

	var doc wimXMLDoc
	if err := xml.Unmarshal(blob, &doc); err != nil {
		return NotMatched, fmt.Errorf("parsing install.wim XML metadata: %w", err)
	}
	if len(doc.Images) == 0 {
		return NotMatched, nil
	}

	images := make([]ImageInfo, 0, len(doc.Images))
	for _, img := range doc.Images {
		name := img.DisplayName
		if name == "" {
			// Older images lack DISPLAYNAME; fall back to NAME without
			// attempting to normalize the two conventions (open question
			// in spec.md 9, deliberately left as-is).
			name = img.Name
		}
		ver := fmt.Sprintf("%d.%d.%d", img.Windows.Version.Major, img.Windows.Version.Minor, img.Windows.Version.Build)
		flavor := img.Windows.EditionID
		if flavor == "" {
			flavor = img.Flags
		}
		images = append(images, ImageInfo{
			Index:           img.Index,
			Name:            name,
			Version:         ver,
			Arch:            timezone.WindowsArchFromCode(img.Windows.Arch),
			Flavor:          Flavor(flavor),
			Languages:       img.Windows.Languages.Language,
			DefaultLanguage: img.Windows.Languages.Default,
		})
	}

	first := doc.Images[0]
	osType := windowsOSTypeFromVersion(first.Windows.Version.Major, first.Windows.Version.Minor, first.Windows.Version.Build, string(images[0].Flavor))
	for i := range images {
		images[i].OSType = osType
	}

	result.OSType = osType
	result.OSVersion = images[0].Version
	result.Flavor = images[0].Flavor
	result.Arch = images[0].Arch
	result.Images = images

	if langIni, err := fs.ReadFile("sources/lang.ini"); err == nil {
		result.Languages = parseLangINIAvailableLanguages(langIni)
	}

	return Matched, nil
}

// windowsOSTypeFromVersion derives the Windows OS-enum by version-range
// compare, per spec.md 4.3.1. Server and client builds are classified on
// separate ladders since their major-release boundaries don't line up:
// server 2022 ships at build 20348, well before client's 22000 threshold
// for Windows 11, so a single shared ladder misclassifies any server
// build in [20348, 22000) as 2019.
func windowsOSTypeFromVersion(major, minor, build int, flavor string) OSType {
	v, err := version.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, build))
	if err != nil {
		return OSUnknown
	}
	if strings.Contains(strings.ToLower(flavor), "server") {
		return windowsServerOSTypeFromVersion(v)
	}
	return windowsClientOSTypeFromVersion(v)
}

func windowsServerOSTypeFromVersion(v *version.Version) OSType {
	switch {
	case v.GreaterThanOrEqual(mustVer("10.0.20348")):
		return OSWindows2022
	case v.GreaterThanOrEqual(mustVer("10.0.17763")):
		return OSWindows2019
	case v.GreaterThanOrEqual(mustVer("10.0.14393")):
		return OSWindows2016
	case v.GreaterThanOrEqual(mustVer("6.3.0")):
		return OSWindows2012
	case v.GreaterThanOrEqual(mustVer("6.2.0")):
		return OSWindows2012
	case v.GreaterThanOrEqual(mustVer("6.1.0")):
		return OSWindows2008
	case v.GreaterThanOrEqual(mustVer("6.0.0")):
		return OSWindows2008
	default:
		return OSUnknown
	}
}

func windowsClientOSTypeFromVersion(v *version.Version) OSType {
	switch {
	case v.GreaterThanOrEqual(mustVer("10.0.22000")):
		return OSWindows11
	case v.GreaterThanOrEqual(mustVer("10.0.0")):
		return OSWindows10
	case v.GreaterThanOrEqual(mustVer("6.3.0")):
		return OSWindows81
	case v.GreaterThanOrEqual(mustVer("6.2.0")):
		return OSWindows8
	case v.GreaterThanOrEqual(mustVer("6.1.0")):
		return OSWindows7
	case v.GreaterThanOrEqual(mustVer("6.0.0")):
		return OSWindowsVista
	default:
		return OSUnknown
	}
}

func mustVer(s string) *version.Version {
	v, err := version.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parseLangINIAvailableLanguages(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	inSection := false
	var langs []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.EqualFold(line, "[Available UI Languages]")
			continue
		}
		if inSection {
			langs = append(langs, line)
		}
	}
	return langs
}

// detectFromLegacyWindowsFiles covers pre-WIM media (XP/2003/2000/NT),
// narrowing osType/osVersion/flavor at each step per spec.md 4.3.1.
func detectFromLegacyWindowsFiles(fs FileSystem, result *Result) (Outcome, error) {
	if ini, err := readFirstExisting(fs, "sources/idwbinfo.txt"); err == nil {
		section := parseINI(ini)
		arch := section["buildinfo"]["buildarch"]
		result.OSType = OSWindowsXP
		result.Arch = timezone.WindowsArchFromCode(windowsArchCodeFromString(arch))
		return PartiallyMatched, nil
	}

	for _, dir := range []string{"AMD64", "I386"} {
		path := dir + "/HIVESYS.INF"
		if !fs.FileExists(path) {
			continue
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return NotMatched, err
		}
		section := parseINI(data)
		driverVer := section["version"]["driverver"]
		osType, ver := windowsOSFromDriverVer(driverVer)
		result.OSType = osType
		result.OSVersion = ver
		if dir == "AMD64" {
			result.Arch = timezone.ArchX64
		} else {
			result.Arch = timezone.ArchX86
		}
		return Matched, nil
	}

	for _, dir := range []string{"AMD64", "I386"} {
		if fs.FileExists(dir + "/PRODSPEC.INI") {
			result.OSType = OSWindowsXP
			return PartiallyMatched, nil
		}
	}

	if fs.FileExists("I386/TXTSETUP.SIF") || fs.FileExists("I386/TXTSETUP.INF") {
		result.OSType = OSWindowsNT4
		result.Arch = timezone.ArchX86
		return PartiallyMatched, nil
	}

	return NotMatched, nil
}

func readFirstExisting(fs FileSystem, path string) ([]byte, error) {
	if !fs.FileExists(path) {
		return nil, fmt.Errorf("%s not found", path)
	}
	return fs.ReadFile(path)
}

// windowsOSFromDriverVer parses HIVESYS.INF's "mm/dd/yyyy,<version>"
// DriverVer value into an OSType, per spec.md 4.3.1.
func windowsOSFromDriverVer(driverVer string) (OSType, string) {
	parts := strings.SplitN(driverVer, ",", 2)
	if len(parts) != 2 {
		return OSUnknown, ""
	}
	ver := strings.TrimSpace(parts[1])
	switch {
	case strings.HasPrefix(ver, "5.2"):
		return OSWindows2003, ver
	case strings.HasPrefix(ver, "5.1"):
		return OSWindowsXP, ver
	case strings.HasPrefix(ver, "5.0"):
		return OSWindows2000, ver
	default:
		return OSUnknown, ver
	}
}

func windowsArchCodeFromString(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amd64", "x64":
		return 9
	case "arm64":
		return 12
	case "arm":
		return 5
	default:
		return 0
	}
}

// parseINI is a minimal `[section]` / `key=value` parser sufficient for
// the small, well-formed Windows setup INI files this detector reads; no
// INI library is part of this module's dependency surface (see
// DESIGN.md), so this stays hand-rolled rather than reaching for one.
func parseINI(data []byte) map[string]map[string]string {
	sections := map[string]map[string]string{}
	current := ""
	sections[current] = map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.ToLower(strings.Trim(line, "[]"))
			if sections[current] == nil {
				sections[current] = map[string]string{}
			}
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:i]))
			val := strings.TrimSpace(line[i+1:])
			sections[current][key] = val
		}
	}
	return sections
}
