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

// Package profile holds the declarative install Profile (the caller's
// input: user, password, locale, hints...), its VMContext sibling, and the
// ValueStore read-only view the template engine consumes. Profile is
// mutable until Freeze succeeds, mirroring UnattendedImpl's "i_setup" vs.
// "locked" lifecycle in the source this was distilled from.
//
// Fields are unexported and reached through Set*/getter pairs so that
// ValueStore (the "pure getters" read-only view spec.md calls for) is just
// Profile itself, with no separate wrapper type needed.
package profile

import (
	"fmt"
	"regexp"
	"strings"

	"vboxunattend/internal/unattend/unattendutil"
)

// ScriptOverride holds optional caller-supplied template paths that replace
// an installer variant's default templates.
type ScriptOverride struct {
	MainTemplatePath string
	PostTemplatePath string
}

// Profile is the mutable, declarative description of one unattended
// install.
type Profile struct {
	installationISOPath  string
	additionsISOPath     string
	installAdditions     bool
	validationKitISOPath string
	installTestExec      bool

	login    string
	password string
	fullName string

	productKey string

	locale   string // ll_CC
	language string
	country  string
	timezone string // IANA or Windows name

	hostname string

	packageSelectionAdjustments map[string]bool

	postInstallCommand string

	extraInstallKernelParameters string

	proxy string

	scripts ScriptOverride

	imageIndex    int
	hasImageIndex bool

	auxiliaryBasePath string

	avoidUpdatesOverNetwork bool

	frozen bool
}

// New returns a Profile with an initialized keyword set.
func New() *Profile {
	return &Profile{packageSelectionAdjustments: map[string]bool{}}
}

// Frozen reports whether Freeze has already succeeded.
func (p *Profile) Frozen() bool { return p.frozen }

// Freeze validates the profile and, on success, marks it immutable.
// Calling Freeze twice is a no-op success.
func (p *Profile) Freeze() error {
	if p.frozen {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.frozen = true
	return nil
}

func (p *Profile) requireMutable(op string) error {
	if p.frozen {
		return unattendutil.New(unattendutil.KindWrongOrder, op, fmt.Errorf("profile is frozen"))
	}
	return nil
}

// --- plain setters (no extra validation beyond mutability) ---

func (p *Profile) SetInstallationISOPath(v string) error {
	if err := p.requireMutable("SetInstallationISOPath"); err != nil {
		return err
	}
	p.installationISOPath = v
	return nil
}

func (p *Profile) SetAdditionsISO(path string, install bool) error {
	if err := p.requireMutable("SetAdditionsISO"); err != nil {
		return err
	}
	p.additionsISOPath, p.installAdditions = path, install
	return nil
}

func (p *Profile) SetValidationKitISO(path string, install bool) error {
	if err := p.requireMutable("SetValidationKitISO"); err != nil {
		return err
	}
	p.validationKitISOPath, p.installTestExec = path, install
	return nil
}

func (p *Profile) SetCredentials(login, password, fullName string) error {
	if err := p.requireMutable("SetCredentials"); err != nil {
		return err
	}
	p.login, p.password, p.fullName = login, password, fullName
	return nil
}

func (p *Profile) SetProductKey(v string) error {
	if err := p.requireMutable("SetProductKey"); err != nil {
		return err
	}
	p.productKey = v
	return nil
}

func (p *Profile) SetTimezone(v string) error {
	if err := p.requireMutable("SetTimezone"); err != nil {
		return err
	}
	p.timezone = v
	return nil
}

func (p *Profile) SetPostInstallCommand(v string) error {
	if err := p.requireMutable("SetPostInstallCommand"); err != nil {
		return err
	}
	p.postInstallCommand = v
	return nil
}

func (p *Profile) SetExtraInstallKernelParameters(v string) error {
	if err := p.requireMutable("SetExtraInstallKernelParameters"); err != nil {
		return err
	}
	p.extraInstallKernelParameters = v
	return nil
}

func (p *Profile) SetProxy(v string) error {
	if err := p.requireMutable("SetProxy"); err != nil {
		return err
	}
	p.proxy = v
	return nil
}

func (p *Profile) SetScripts(s ScriptOverride) error {
	if err := p.requireMutable("SetScripts"); err != nil {
		return err
	}
	p.scripts = s
	return nil
}

func (p *Profile) SetImageIndex(idx int) error {
	if err := p.requireMutable("SetImageIndex"); err != nil {
		return err
	}
	p.imageIndex, p.hasImageIndex = idx, true
	return nil
}

func (p *Profile) SetAuxiliaryBasePath(v string) error {
	if err := p.requireMutable("SetAuxiliaryBasePath"); err != nil {
		return err
	}
	p.auxiliaryBasePath = v
	return nil
}

func (p *Profile) SetAvoidUpdatesOverNetwork(v bool) error {
	if err := p.requireMutable("SetAvoidUpdatesOverNetwork"); err != nil {
		return err
	}
	p.avoidUpdatesOverNetwork = v
	return nil
}

func (p *Profile) AddPackageSelectionKeyword(kw string) error {
	if err := p.requireMutable("AddPackageSelectionKeyword"); err != nil {
		return err
	}
	p.packageSelectionAdjustments[kw] = true
	return nil
}

// --- validated setters ---

// SetHostname validates and sets Hostname, per spec.md's FQDN rules.
func (p *Profile) SetHostname(h string) error {
	if err := p.requireMutable("SetHostname"); err != nil {
		return err
	}
	if err := ValidateHostname(h); err != nil {
		return err
	}
	p.hostname = h
	return nil
}

// SetLocale validates and sets Locale/Language/Country together, enforcing
// the "locale, if set, must match ll_CC" and "country two uppercase
// letters" invariants.
func (p *Profile) SetLocale(locale, language, country string) error {
	if err := p.requireMutable("SetLocale"); err != nil {
		return err
	}
	if locale != "" {
		ll, cc, ok := splitLocale(locale)
		if !ok {
			return unattendutil.Newf(unattendutil.KindInvalidField, "SetLocale", "locale %q is not ll_CC", locale)
		}
		if language != "" && language != ll {
			return unattendutil.Newf(unattendutil.KindInvalidField, "SetLocale", "language %q does not match locale %q", language, locale)
		}
		if country != "" && country != cc {
			return unattendutil.Newf(unattendutil.KindInvalidField, "SetLocale", "country %q does not match locale %q", country, locale)
		}
	}
	if country != "" {
		if err := ValidateCountry(country); err != nil {
			return err
		}
	}
	p.locale, p.language, p.country = locale, language, country
	return nil
}

var localeRe = regexp.MustCompile(`^([a-z]{2,3})_([A-Z]{2})$`)

func splitLocale(locale string) (lang, country string, ok bool) {
	m := localeRe.FindStringSubmatch(locale)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ValidateCountry enforces "country, if set, two uppercase letters".
func ValidateCountry(country string) error {
	if len(country) != 2 || strings.ToUpper(country) != country || !isAlpha(country) {
		return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateCountry", "country %q must be two uppercase letters", country)
	}
	return nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ValidateHostname enforces spec.md's FQDN rules: total <=253 chars
// excluding a trailing dot (which is itself rejected), each label <=63
// chars, leading character alphanumeric, and at least 2 labels.
func ValidateHostname(h string) error {
	if h == "" {
		return unattendutil.New(unattendutil.KindInvalidField, "ValidateHostname", fmt.Errorf("hostname is empty"))
	}
	if strings.HasSuffix(h, ".") {
		return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q must not end with a dot", h)
	}
	if len(h) > 253 {
		return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q exceeds 253 characters", h)
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q needs at least 2 labels", h)
	}
	for _, l := range labels {
		if l == "" {
			return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q has an empty label", h)
		}
		if len(l) > 63 {
			return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q has a label longer than 63 characters", h)
		}
		if !isAlnum(l[0]) {
			return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q label %q must start with a letter or digit", h, l)
		}
		for _, c := range []byte(l) {
			if !isAlnum(c) && c != '-' {
				return unattendutil.Newf(unattendutil.KindInvalidField, "ValidateHostname", "hostname %q label %q has an invalid character", h, l)
			}
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Validate checks every field-level invariant spec.md §3 lists, without
// reference to detection results (image index range checking happens in
// Orchestrator.prepare, once detection is available).
func (p *Profile) Validate() error {
	if p.login == "" {
		return unattendutil.New(unattendutil.KindInvalidField, "Validate", fmt.Errorf("user login is required"))
	}
	if p.password == "" {
		return unattendutil.New(unattendutil.KindInvalidField, "Validate", fmt.Errorf("user password is required"))
	}
	if p.installationISOPath == "" {
		return unattendutil.New(unattendutil.KindMissingFile, "Validate", fmt.Errorf("installation ISO path is required"))
	}
	if p.hostname != "" {
		if err := ValidateHostname(p.hostname); err != nil {
			return err
		}
	}
	if p.country != "" {
		if err := ValidateCountry(p.country); err != nil {
			return err
		}
	}
	if p.locale != "" {
		if _, _, ok := splitLocale(p.locale); !ok {
			return unattendutil.Newf(unattendutil.KindInvalidField, "Validate", "locale %q is not ll_CC", p.locale)
		}
	}
	return nil
}

// HostnameParts splits a validated hostname into its first label and the
// remaining domain, e.g. "vm.corp.example.com" -> ("vm", "corp.example.com").
func HostnameParts(h string) (label, domain string) {
	i := strings.IndexByte(h, '.')
	if i < 0 {
		return h, ""
	}
	return h[:i], h[i+1:]
}

// InstallationISOPath returns the (not-yet-detection-dependent) guest ISO
// path. Exposed directly (not part of ValueStore) because detection and
// media authoring need it before/without going through the template engine.
func (p *Profile) InstallationISOPath() string  { return p.installationISOPath }
func (p *Profile) AdditionsISOPath() string     { return p.additionsISOPath }
func (p *Profile) ValidationKitISOPath() string { return p.validationKitISOPath }
func (p *Profile) Scripts() ScriptOverride      { return p.scripts }

// FirmwareKind is the VM firmware type, affecting Windows Vista+ media
// choice per spec.md §4.4.
type FirmwareKind string

const (
	FirmwareBIOS FirmwareKind = "bios"
	FirmwareUEFI FirmwareKind = "uefi"
)

// VMContext is the frozen-at-prepare VM configuration input.
type VMContext struct {
	GuestOSTypeID string
	Is64Bit       bool
	Firmware      FirmwareKind
	RTCUsesUTC    bool
	MachineUUID   string
	MachineName   string
}
