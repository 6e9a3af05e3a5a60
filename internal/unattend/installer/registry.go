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
	"strconv"

	"vboxunattend/internal/unattend/detect"
)

// registry is the per-OSType family table spec.md §9's design note calls
// for: each OS-specific behavior is data, not a bespoke type. A family
// whose menu-rewriting or kernel-arg handling is genuinely distinct still
// gets its own logic in kernelargs.go/menurewrite.go/os2.go/viso.go; this
// table only says WHICH of that logic applies and with what parameters.
var registry = map[detect.OSType]Spec{
	detect.OSWindowsNT3x: windowsSIFSpec("templates/windows-nt3x.sif.tmpl"),
	detect.OSWindowsNT4:  windowsSIFSpec("templates/windows-nt4.sif.tmpl"),
	detect.OSWindows2000: windowsSIFSpec("templates/windows-2000.sif.tmpl"),
	detect.OSWindowsXP:   windowsSIFSpec("templates/windows-xp.sif.tmpl"),

	detect.OSWindowsVista: windowsXMLSpec("templates/windows-vista.xml.tmpl"),
	detect.OSWindows7:     windowsXMLSpec("templates/windows-7.xml.tmpl"),
	detect.OSWindows8:     windowsXMLSpec("templates/windows-8.xml.tmpl"),
	detect.OSWindows81:    windowsXMLSpec("templates/windows-81.xml.tmpl"),
	detect.OSWindows10:    windowsXMLSpec("templates/windows-10.xml.tmpl"),
	detect.OSWindows11:    windowsXMLSpec("templates/windows-11.xml.tmpl"),
	detect.OSWindows2008:  windowsXMLSpec("templates/windows-2008.xml.tmpl"),
	detect.OSWindows2012:  windowsXMLSpec("templates/windows-2012.xml.tmpl"),
	detect.OSWindows2016:  windowsXMLSpec("templates/windows-2016.xml.tmpl"),
	detect.OSWindows2019:  windowsXMLSpec("templates/windows-2019.xml.tmpl"),
	detect.OSWindows2022:  windowsXMLSpec("templates/windows-2022.xml.tmpl"),

	detect.OSOS2Generic:  os2Spec(),
	detect.OSOS2Warp45:   os2Spec(),
	detect.OSArcaOS:      os2Spec(),
	detect.OSeComStation: os2Spec(),

	detect.OSDebian: debianSpec(),
	detect.OSUbuntu: debianSpec(),
	detect.OSMint:   debianSpec(),

	detect.OSRedHat:    rhelSpec(KernelParamKsCdrom),
	detect.OSCentOS:    rhelSpec(KernelParamKsCdrom),
	detect.OSFedora:    rhelSpec(KernelParamInstKs),
	detect.OSOracle:    rhelSpec(KernelParamKsCdrom), // narrowed to KernelParamInstKs for OL9+ by LookupOracle
	detect.OSOpenSUSE:  rhelSpec(KernelParamKsCdrom),

	detect.OSFreeBSD: freeBSDSpec(),
}

// Lookup returns a copy of the registered Spec for osType. For Oracle
// Linux this is the OL6/7/8 spelling (ks=cdrom:/); the OL9+ spelling
// (inst.ks=) depends on the major version and comes from LookupOracle,
// which NewVariant uses for a detected Oracle Linux.
func Lookup(osType detect.OSType) (Spec, bool) {
	s, ok := registry[osType]
	return s, ok
}

// LookupOracle returns the Oracle Linux Spec narrowed for guestOSMajorVersion
// ("9", "10", ...  switch to inst.ks=; "6","7","8" keep ks=cdrom:/).
func LookupOracle(guestOSMajorVersion string) Spec {
	s := registry[detect.OSOracle]
	if major, err := strconv.Atoi(guestOSMajorVersion); err == nil && major >= 9 {
		s.KernelParamStyle = KernelParamInstKs
	}
	return s
}

func windowsSIFSpec(mainTemplate string) Spec {
	return Spec{
		MainTemplatePath:    mainTemplate,
		AuxFloppyNeeded:     true,
		AnswerFileNameInAux: "WINNT.SIF",
		KernelParamStyle:    KernelParamNone,
	}
}

func windowsXMLSpec(mainTemplate string) Spec {
	return Spec{
		MainTemplatePath:    mainTemplate,
		AuxFloppyNeeded:     true, // narrowed to false / AuxISONeeded=true for UEFI firmware by NewVariant
		AnswerFileNameInAux: "autounattend.xml",
		KernelParamStyle:    KernelParamNone,
	}
}

func os2Spec() Spec {
	return Spec{
		MainTemplatePath:    "templates/os2.response.tmpl",
		AuxFloppyNeeded:     true,
		AnswerFileNameInAux: "VBOXDATA.TXT",
		KernelParamStyle:    KernelParamNone,
	}
}

func debianSpec() Spec {
	return Spec{
		MainTemplatePath:    "templates/debian-preseed.cfg.tmpl",
		AuxISONeeded:        true,
		AuxISOIsVISO:        true,
		AnswerFileNameInAux: "preseed.cfg",
		BootMenuCandidates: []string{
			"isolinux/txt.cfg",
			"isolinux/menu.cfg",
			"isolinux/isolinux.cfg",
			"boot/grub/grub.cfg",
		},
		KernelParamStyle:         KernelParamPreseed,
		DefaultExtraKernelParams: "auto=true priority=critical",
	}
}

func rhelSpec(style KernelParamStyle) Spec {
	return Spec{
		MainTemplatePath:    "templates/rhel-kickstart.cfg.tmpl",
		AuxISONeeded:        true,
		AuxISOIsVISO:        true,
		AnswerFileNameInAux: "ks.cfg",
		BootMenuCandidates:  []string{"isolinux/isolinux.cfg"},
		KernelParamStyle:    style,
		RemoveKernelParamGlobs: []string{
			"rd.live.check",
		},
	}
}

func freeBSDSpec() Spec {
	return Spec{
		MainTemplatePath:    "templates/freebsd-installerconfig.tmpl",
		AuxISONeeded:        true,
		AuxISOIsVISO:        true,
		AnswerFileNameInAux: "/etc/installerconfig",
		KernelParamStyle:    KernelParamNone,
	}
}
