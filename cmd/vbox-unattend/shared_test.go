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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vboxunattend/internal/unattend/profile"
)

func resetFlags(t *testing.T) {
	t.Helper()
	saved := flg
	t.Cleanup(func() { flg = saved })
	flg = flags{}
}

func TestLoadProfileFromJSON(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"installation_iso": "/isos/win10.iso",
		"login": "vboxuser",
		"password": "hunter2",
		"hostname": "vm.local"
	}`), 0o644))

	flg.profilePath = path
	p, err := loadProfile()
	require.NoError(t, err)
	require.Equal(t, "/isos/win10.iso", p.InstallationISOPath())
	require.Equal(t, "vboxuser", p.Login())
	require.Equal(t, "vm.local", p.Hostname())
}

func TestLoadProfileFromHCL(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
profile {
  installation_iso = "/isos/debian.iso"
  login             = "vboxuser"
  password          = "hunter2"
  hostname          = "debian-vm.local"
}
`), 0o644))

	flg.profilePath = path
	p, err := loadProfile()
	require.NoError(t, err)
	require.Equal(t, "/isos/debian.iso", p.InstallationISOPath())
	require.Equal(t, "debian-vm.local", p.Hostname())
}

func TestLoadProfileIsoFlagOverridesProfileFile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"installation_iso": "/isos/original.iso",
		"login": "vboxuser",
		"password": "hunter2"
	}`), 0o644))

	flg.profilePath = path
	flg.isoPath = "/isos/override.iso"
	p, err := loadProfile()
	require.NoError(t, err)
	require.Equal(t, "/isos/override.iso", p.InstallationISOPath())
}

func TestLoadProfileRequiresProfileFlag(t *testing.T) {
	resetFlags(t)
	_, err := loadProfile()
	require.Error(t, err)
}

func TestLoadProfileRejectsUnknownExtension(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("installation_iso: /isos/x.iso\n"), 0o644))
	flg.profilePath = path
	_, err := loadProfile()
	require.Error(t, err)
}

func TestVMContextDefaultsToBIOS(t *testing.T) {
	resetFlags(t)
	flg.firmware = "bios"
	require.Equal(t, profile.FirmwareBIOS, vmContext().Firmware)
}

func TestVMContextSelectsUEFICaseInsensitively(t *testing.T) {
	resetFlags(t)
	flg.firmware = "UEFI"
	require.Equal(t, profile.FirmwareUEFI, vmContext().Firmware)
}

func TestAuxBaseAppendsSeparator(t *testing.T) {
	resetFlags(t)
	flg.auxDir = "/tmp/aux"
	require.Equal(t, "/tmp/aux"+string(filepath.Separator), auxBase())
}

func TestAuxBaseDefaultsToCurrentDir(t *testing.T) {
	resetFlags(t)
	require.Equal(t, "."+string(filepath.Separator), auxBase())
}
