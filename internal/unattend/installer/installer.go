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

// Package installer holds the family of OS-specific installer variants:
// given a detected OS and a frozen Profile, each variant decides which aux
// media it needs (answer floppy, remastered ISO, VISO descriptor), which
// boot-menu files to rewrite, and which kernel parameters to inject or
// remove, then drives TemplateEngine/Splitter/media to produce the bytes.
package installer

import (
	"errors"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/template"
	"vboxunattend/internal/unattend/unattendutil"
)

// MediaKind enumerates the aux media shapes a variant may require.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaFloppy
	MediaAuxISORemaster
	MediaVISO
)

// KernelParamStyle picks how a family spells its unattended-answer-file
// kernel parameter, since RHEL-family installers changed the spelling at
// Oracle Linux 9.
type KernelParamStyle int

const (
	KernelParamNone KernelParamStyle = iota
	KernelParamKsCdrom                // ks=cdrom:/<file>
	KernelParamInstKs                 // inst.ks=cdrom:/<file>
	KernelParamPreseed                // preseed/file=/cdrom/<file>
)

// Spec is the static, per-OS-family description driving a Variant: default
// template paths, aux filenames, which media kinds are needed, and the
// kernel-argument/menu-rewrite policy. This is the "table-driven family of
// variant builders" spec.md §9 calls for, rather than one struct type per
// family.
type Spec struct {
	Name MediaKind // informational; real identity is the OSType key in the registry

	MainTemplatePath string
	PostTemplatePath string

	AuxFloppyNeeded  bool
	AuxISONeeded     bool
	AuxISOIsVISO     bool
	BootMenuCandidates []string // tried in order; first existing wins

	KernelParamStyle      KernelParamStyle
	RemoveKernelParamGlobs []string
	DefaultExtraKernelParams string

	// AnswerFileNameInAux is the filename the main script is written to
	// inside the aux media root (e.g. "WINNT.SIF", "preseed.cfg",
	// "ks.cfg", "/etc/installerconfig").
	AnswerFileNameInAux string
}

// BuildResult records what constructMedia produced, for Orchestrator/
// ReconfigPlanner to act on.
type BuildResult struct {
	FloppyImagePath string
	AuxISOPath      string
	VISOArgv        []string
	SplitFiles      []string
}

// Variant is one instantiated installer, bound to a detected OS, a frozen
// Profile, and a VMContext. It mirrors the InstallerFamily common lifecycle
// from spec.md §4.4: initInstaller -> prepareUnattendedScripts ->
// prepareMedia.
type Variant struct {
	Spec   Spec
	Store  *profile.Profile
	Detect *detect.Result
	VM     profile.VMContext

	mainTemplate []byte
	postTemplate []byte

	auxBasePath string

	osType detect.OSType // the guest OS type the Spec was resolved for

	initialized  bool
	scriptsReady bool
}

// NewVariant resolves the Spec for detected.OSType (applying any caller
// script overrides) and returns an uninitialized Variant. auxBasePath is
// the directory (with trailing separator) aux media paths are rooted at.
// store is the same frozen Profile the template engine renders against;
// Variant needs a few of its direct accessors (InstallationISOPath,
// ExtraInstallKernelParameters) that are deliberately outside the
// ValueStore interface template consumes.
func NewVariant(osType detect.OSType, store *profile.Profile, detection *detect.Result, vm profile.VMContext, overrides profile.ScriptOverride, auxBasePath string) (*Variant, error) {
	spec, ok := Lookup(osType)
	if !ok {
		return nil, unattendutil.Newf(unattendutil.KindUnsupportedGuest, "installer.NewVariant", "no installer variant for guest OS %q", osType)
	}
	if osType == detect.OSOracle && detection != nil {
		spec = LookupOracle(detection.GuestOSMajorVersion())
	}
	if overrides.MainTemplatePath != "" {
		spec.MainTemplatePath = overrides.MainTemplatePath
	}
	if overrides.PostTemplatePath != "" {
		spec.PostTemplatePath = overrides.PostTemplatePath
	}
	if osType.IsWindowsVistaPlusFamily() && vm.Firmware == profile.FirmwareUEFI {
		// Vista+ under UEFI firmware has no BIOS-era floppy controller to
		// attach the answer floppy to, so the answer file and boot-menu
		// rewrite instead travel on a VISO, same as the Linux/BSD families.
		spec.AuxFloppyNeeded = false
		spec.AuxISONeeded = true
		spec.AuxISOIsVISO = true
		spec.BootMenuCandidates = []string{"efi/boot/bootx64.efi.cfg"}
	}
	return &Variant{Spec: spec, Store: store, Detect: detection, VM: vm, auxBasePath: auxBasePath, osType: osType}, nil
}

// InitInstaller validates the required profile fields spec.md §4.4 step 1
// names (ISO path, login, password). isoExists is the caller's answer to
// whether the installation ISO path exists on the local disk.
func (v *Variant) InitInstaller(isoExists bool) error {
	if !isoExists {
		return unattendutil.New(unattendutil.KindMissingFile, "installer.InitInstaller", errors.New("installation ISO path does not exist"))
	}
	if v.Store.Login() == "" || v.Store.Password() == "" {
		return unattendutil.New(unattendutil.KindInvalidField, "installer.InitInstaller", errors.New("login and password are required"))
	}
	v.initialized = true
	return nil
}

// FloppyPath, AuxISOPath mirror spec.md §4.4 step 1's "<auxBase>aux-floppy.img"
// / "aux-iso.iso" / "aux-iso.viso" naming.
func (v *Variant) FloppyPath() string { return v.auxBasePath + "aux-floppy.img" }
func (v *Variant) AuxISOPath() string {
	if v.Spec.AuxISOIsVISO {
		return v.auxBasePath + "aux-iso.viso"
	}
	return v.auxBasePath + "aux-iso.iso"
}

// PrepareUnattendedScripts loads and syntax-checks the main/post templates
// (spec.md §4.4 step 2). readTemplate is supplied by the caller (typically
// reading the override path or an embedded default).
func (v *Variant) PrepareUnattendedScripts(readTemplate func(path string) ([]byte, error)) error {
	if !v.initialized {
		return unattendutil.New(unattendutil.KindWrongOrder, "installer.PrepareUnattendedScripts", errors.New("InitInstaller must succeed first"))
	}
	main, err := readTemplate(v.Spec.MainTemplatePath)
	if err != nil {
		return unattendutil.New(unattendutil.KindMissingFile, "installer.PrepareUnattendedScripts", err)
	}
	if err := template.CheckSyntax(main); err != nil {
		return err
	}
	v.mainTemplate = main
	if v.Spec.PostTemplatePath != "" {
		post, err := readTemplate(v.Spec.PostTemplatePath)
		if err != nil {
			return unattendutil.New(unattendutil.KindMissingFile, "installer.PrepareUnattendedScripts", err)
		}
		if err := template.CheckSyntax(post); err != nil {
			return err
		}
		v.postTemplate = post
	}
	v.scriptsReady = true
	return nil
}
