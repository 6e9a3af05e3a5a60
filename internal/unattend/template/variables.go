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

package template

import (
	"strconv"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/timezone"
)

// Context bundles the three inputs variable resolution needs beyond the
// Profile itself: the frozen VM context, the detection result, and the
// resolved image index (set by the installer after prepare, since
// IMAGE_INDEX may be inferred rather than supplied by the caller).
type Context struct {
	VM         profile.VMContext
	Detection  *detect.Result
	ImageIndex int
}

// resolver implements expr.VariableSource and is also consulted directly
// by the engine for INSERT_<NAME>/COND_<NAME> forms, over the fixed
// variable set in spec.md 4.1.2/4.1.3.
type resolver struct {
	store profile.ValueStore
	ctx   Context
}

func newResolver(store profile.ValueStore, ctx Context) *resolver {
	return &resolver{store: store, ctx: ctx}
}

// Query implements expr.VariableSource and the plain INSERT_<NAME> path.
func (r *resolver) Query(name string) (string, bool) {
	switch name {
	case "USER_LOGIN":
		return r.store.Login(), true
	case "USER_PASSWORD":
		return r.store.Password(), true
	case "ROOT_PASSWORD":
		return r.store.RootPassword(), true
	case "USER_FULL_NAME":
		return r.store.FullName(), true
	case "PRODUCT_KEY":
		return r.store.ProductKey(), true
	case "POST_INSTALL_COMMAND":
		return r.store.PostInstallCommand(), true
	case "AUXILIARY_INSTALL_DIR":
		return r.store.AuxiliaryInstallDir(), true
	case "PROXY":
		return r.store.Proxy(), true
	case "IMAGE_INDEX":
		return strconv.Itoa(r.ctx.ImageIndex), true
	case "OS_ARCH":
		return r.archSpelling(1), true
	case "OS_ARCH2":
		return r.archSpelling(2), true
	case "OS_ARCH3":
		return r.archSpelling(3), true
	case "OS_ARCH4":
		return r.archSpelling(4), true
	case "OS_ARCH6":
		return r.archSpelling(6), true
	case "GUEST_OS_VERSION":
		if r.ctx.Detection != nil {
			return r.ctx.Detection.GuestOSVersion(), true
		}
		return "", true
	case "GUEST_OS_MAJOR_VERSION":
		if r.ctx.Detection != nil {
			return r.ctx.Detection.GuestOSMajorVersion(), true
		}
		return "", true
	case "TIME_ZONE_UX":
		return timezone.Lookup(r.store.Timezone()).IANA, true
	case "TIME_ZONE_WIN_NAME":
		return timezone.Lookup(r.store.Timezone()).WindowsName, true
	case "TIME_ZONE_WIN_INDEX":
		return strconv.Itoa(timezone.Lookup(r.store.Timezone()).WindowsIdx), true
	case "LOCALE":
		return r.store.Locale(), true
	case "DASH_LOCALE":
		return r.store.DashLocale(), true
	case "LANGUAGE":
		return r.store.Language(), true
	case "COUNTRY":
		return r.store.Country(), true
	case "HOSTNAME_FQDN":
		return r.store.Hostname(), true
	case "HOSTNAME_WITHOUT_DOMAIN":
		return r.store.HostnameWithoutDomain(), true
	case "HOSTNAME_WITHOUT_DOMAIN_MAX_15":
		return r.store.HostnameWithoutDomainMax15(), true
	case "HOSTNAME_DOMAIN":
		return r.store.HostnameDomain(), true
	}
	if b, ok := r.boolVariable(name); ok {
		if b {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

// Defined implements expr.VariableSource; it never errors, returning
// false for anything outside the fixed set or the empty string.
func (r *resolver) Defined(name string) bool {
	v, ok := r.Query(name)
	return ok && v != ""
}

// boolVariable resolves the indicator-boolean subset of the variable
// namespace (spec.md 4.1.2's "Indicator booleans" row).
func (r *resolver) boolVariable(name string) (bool, bool) {
	switch name {
	case "IS_INSTALLING_ADDITIONS":
		return r.store.IsInstallingAdditions(), true
	case "IS_USER_LOGIN_ADMINISTRATOR":
		return r.store.IsUserLoginAdministrator(), true
	case "IS_INSTALLING_TEST_EXEC_SERVICE":
		return r.store.IsInstallingTestExecService(), true
	case "HAS_POST_INSTALL_COMMAND":
		return r.store.HasPostInstallCommand(), true
	case "HAS_PRODUCT_KEY":
		return r.store.HasProductKey(), true
	case "IS_MINIMAL_INSTALLATION":
		return r.store.IsMinimalInstallation(), true
	case "IS_FIRMWARE_UEFI":
		return r.ctx.VM.Firmware == profile.FirmwareUEFI, true
	case "IS_RTC_USING_UTC":
		return r.ctx.VM.RTCUsesUTC, true
	case "HAS_PROXY":
		return r.store.HasProxy(), true
	}
	return false, false
}

// predicate resolves the closed set of COND_<NAME> forms (spec.md 4.1.3),
// distinct from the variable namespace: it includes IS_NOT_*/HAS_NO_*
// negated forms that are not themselves insertable variables.
func (r *resolver) predicate(name string) (bool, bool) {
	switch name {
	case "IS_INSTALLING_ADDITIONS":
		return r.store.IsInstallingAdditions(), true
	case "IS_NOT_INSTALLING_ADDITIONS":
		return !r.store.IsInstallingAdditions(), true
	case "IS_USER_LOGIN_ADMINISTRATOR":
		return r.store.IsUserLoginAdministrator(), true
	case "IS_USER_LOGIN_NOT_ADMINISTRATOR":
		return !r.store.IsUserLoginAdministrator(), true
	case "IS_INSTALLING_TEST_EXEC_SERVICE":
		return r.store.IsInstallingTestExecService(), true
	case "IS_NOT_INSTALLING_TEST_EXEC_SERVICE":
		return !r.store.IsInstallingTestExecService(), true
	case "HAS_POST_INSTALL_COMMAND":
		return r.store.HasPostInstallCommand(), true
	case "HAS_NO_POST_INSTALL_COMMAND":
		return !r.store.HasPostInstallCommand(), true
	case "HAS_PRODUCT_KEY":
		return r.store.HasProductKey(), true
	case "HAS_NO_PRODUCT_KEY":
		return !r.store.HasProductKey(), true
	case "IS_MINIMAL_INSTALLATION":
		return r.store.IsMinimalInstallation(), true
	case "IS_NOT_MINIMAL_INSTALLATION":
		return !r.store.IsMinimalInstallation(), true
	case "IS_FIRMWARE_UEFI":
		return r.ctx.VM.Firmware == profile.FirmwareUEFI, true
	case "IS_NOT_FIRMWARE_UEFI":
		return r.ctx.VM.Firmware != profile.FirmwareUEFI, true
	case "IS_RTC_USING_UTC":
		return r.ctx.VM.RTCUsesUTC, true
	case "IS_NOT_RTC_USING_UTC":
		return !r.ctx.VM.RTCUsesUTC, true
	case "HAS_PROXY":
		return r.store.HasProxy(), true
	case "AVOID_UPDATES_OVER_NETWORK":
		return r.store.AvoidUpdatesOverNetwork(), true
	}
	return false, false
}

// archSpelling renders the 64-bit-guest-dependent arch spellings
// OS_ARCH..OS_ARCH6 per spec.md 4.1.2. The exact pairs mirror the
// original implementation's txtsetup/unattend.xml architecture tokens.
func (r *resolver) archSpelling(variant int) string {
	is64 := r.ctx.VM.Is64Bit
	switch variant {
	case 1:
		if is64 {
			return "amd64"
		}
		return "x86"
	case 2:
		if is64 {
			return "x86_64"
		}
		return "x86"
	case 3:
		if is64 {
			return "x86_64"
		}
		return "i386"
	case 4:
		if is64 {
			return "x86_64"
		}
		return "i486"
	case 6:
		if is64 {
			return "x86_64"
		}
		return "i686"
	}
	return ""
}
