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

package profile

import "strings"

// ValueStore is the read-only view of a Profile that the template engine
// and installer variants consume. *Profile implements it directly; no
// other concrete type is expected to.
type ValueStore interface {
	Login() string
	Password() string
	RootPassword() string // alias of Password, per spec.md's USER_PASSWORD/ROOT_PASSWORD variables
	FullName() string
	ProductKey() string
	PostInstallCommand() string
	AuxiliaryInstallDir() string
	Proxy() string

	ImageIndex() (idx int, ok bool)

	Locale() string
	DashLocale() string
	Language() string
	Country() string
	Timezone() string

	Hostname() string
	HostnameWithoutDomain() string
	HostnameWithoutDomainMax15() string
	HostnameDomain() string

	IsInstallingAdditions() bool
	IsInstallingTestExecService() bool
	HasPostInstallCommand() bool
	HasProductKey() bool
	HasProxy() bool
	IsMinimalInstallation() bool
	AvoidUpdatesOverNetwork() bool

	IsUserLoginAdministrator() bool
}

var _ ValueStore = (*Profile)(nil)

func (p *Profile) Login() string { return p.login }

func (p *Profile) Password() string { return p.password }

func (p *Profile) RootPassword() string { return p.password }

func (p *Profile) FullName() string {
	if p.fullName != "" {
		return p.fullName
	}
	return p.login
}

func (p *Profile) ProductKey() string { return p.productKey }

func (p *Profile) PostInstallCommand() string { return p.postInstallCommand }

func (p *Profile) AuxiliaryInstallDir() string { return p.auxiliaryBasePath }

func (p *Profile) Proxy() string { return p.proxy }

func (p *Profile) ImageIndex() (int, bool) { return p.imageIndex, p.hasImageIndex }

func (p *Profile) Locale() string { return p.locale }

func (p *Profile) DashLocale() string { return strings.ReplaceAll(p.locale, "_", "-") }

func (p *Profile) Language() string { return p.language }

func (p *Profile) Country() string { return p.country }

func (p *Profile) Timezone() string { return p.timezone }

func (p *Profile) Hostname() string { return p.hostname }

func (p *Profile) HostnameWithoutDomain() string {
	label, _ := HostnameParts(p.hostname)
	return label
}

func (p *Profile) HostnameWithoutDomainMax15() string {
	label := p.HostnameWithoutDomain()
	if len(label) > 15 {
		return label[:15]
	}
	return label
}

func (p *Profile) HostnameDomain() string {
	_, domain := HostnameParts(p.hostname)
	return domain
}

func (p *Profile) IsInstallingAdditions() bool { return p.installAdditions }

func (p *Profile) IsInstallingTestExecService() bool { return p.installTestExec }

func (p *Profile) HasPostInstallCommand() bool { return p.postInstallCommand != "" }

func (p *Profile) HasProductKey() bool { return p.productKey != "" }

func (p *Profile) HasProxy() bool { return p.proxy != "" }

func (p *Profile) IsMinimalInstallation() bool {
	return p.packageSelectionAdjustments["minimal"]
}

func (p *Profile) AvoidUpdatesOverNetwork() bool { return p.avoidUpdatesOverNetwork }

// IsUserLoginAdministrator reports whether the login is "administrator" or
// "root", compared case-insensitively. The check is the same for every
// target OS family.
func (p *Profile) IsUserLoginAdministrator() bool {
	login := strings.ToLower(p.login)
	return login == "administrator" || login == "root"
}

// ExtraInstallKernelParameters returns the caller-supplied extra kernel
// command-line parameters (not part of ValueStore/templating; consumed
// directly by installer variants' kernel-arg editing).
func (p *Profile) ExtraInstallKernelParameters() string { return p.extraInstallKernelParameters }

// PackageSelectionKeywords returns the set of package-selection adjustment
// keywords (e.g. "minimal").
func (p *Profile) PackageSelectionKeywords() map[string]bool { return p.packageSelectionAdjustments }
