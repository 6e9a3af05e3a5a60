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

import (
	"testing"

	"vboxunattend/internal/unattend/unattendutil"

	"github.com/stretchr/testify/require"
)

func validProfile(t *testing.T) *Profile {
	t.Helper()
	p := New()
	require.NoError(t, p.SetInstallationISOPath("/isos/win.iso"))
	require.NoError(t, p.SetCredentials("vboxuser", "secret", ""))
	return p
}

func TestHostnameValidation(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"vm.local", true},
		{"vm.local.", false},
		{"vm", false},
		{strRepeat("a", 64) + ".local", false},
		{strRepeat("a.", 128) + "local", false},
		{"-vm.local", false},
		{"vm-1.local", true},
	}
	for _, c := range cases {
		err := ValidateHostname(c.name)
		if c.ok {
			require.NoError(t, err, c.name)
		} else {
			require.Error(t, err, c.name)
		}
	}
}

func strRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestFreezeThenMutateFails(t *testing.T) {
	p := validProfile(t)
	require.NoError(t, p.Freeze())
	err := p.SetProductKey("911")
	require.Error(t, err)
	kind, ok := unattendutil.KindOf(err)
	require.True(t, ok)
	require.Equal(t, unattendutil.KindWrongOrder, kind)
}

func TestValidateRequiresLoginPasswordISO(t *testing.T) {
	p := New()
	err := p.Validate()
	require.Error(t, err)
}

func TestSetLocaleMismatch(t *testing.T) {
	p := validProfile(t)
	err := p.SetLocale("en_US", "de", "")
	require.Error(t, err)
}

func TestSetLocaleConsistent(t *testing.T) {
	p := validProfile(t)
	require.NoError(t, p.SetLocale("en_US", "en", "US"))
	require.Equal(t, "en-US", p.DashLocale())
}

func TestFullNameFallsBackToLogin(t *testing.T) {
	p := validProfile(t)
	require.Equal(t, "vboxuser", p.FullName())
}

func TestIsUserLoginAdministrator(t *testing.T) {
	p := New()
	require.NoError(t, p.SetCredentials("Administrator", "x", ""))
	require.True(t, p.IsUserLoginAdministrator())
}

func TestHostnameParts(t *testing.T) {
	label, domain := HostnameParts("vm.corp.example.com")
	require.Equal(t, "vm", label)
	require.Equal(t, "corp.example.com", domain)

	label, domain = HostnameParts("vm")
	require.Equal(t, "vm", label)
	require.Equal(t, "", domain)
}
