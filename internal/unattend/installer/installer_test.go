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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/template"
)

func newFrozenProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := profile.New()
	require.NoError(t, p.SetInstallationISOPath("/isos/debian-12.iso"))
	require.NoError(t, p.SetCredentials("vbox", "hunter2", "VBox User"))
	require.NoError(t, p.Freeze())
	return p
}

type fakeFloppyTarget struct {
	files map[string][]byte
}

func newFakeFloppyTarget() *fakeFloppyTarget {
	return &fakeFloppyTarget{files: map[string][]byte{}}
}

func (f *fakeFloppyTarget) WriteFile(name string, content []byte) error {
	f.files[name] = content
	return nil
}

type fakeIsoSource struct {
	files map[string][]byte
}

func (f *fakeIsoSource) ReadFile(path string) ([]byte, error) {
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, errNotFound
}

func (f *fakeIsoSource) FileExists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeIsoSource) ReadDir(path string) ([]string, error) { return nil, nil }

var errNotFound = &fakeErr{"not found"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func TestVariantLifecycleOS2Floppy(t *testing.T) {
	p := newFrozenProfile(t)
	base := t.TempDir() + string(filepath.Separator)

	v, err := NewVariant(detect.OSArcaOS, p, detect.NewResult(), profile.VMContext{}, profile.ScriptOverride{}, base)
	require.NoError(t, err)
	require.Equal(t, base+"aux-floppy.img", v.FloppyPath())

	require.NoError(t, v.InitInstaller(true))
	err = v.PrepareUnattendedScripts(func(path string) ([]byte, error) {
		return []byte("CONFIG.SYS content, no placeholders here"), nil
	})
	require.NoError(t, err)

	floppy := newFakeFloppyTarget()
	iso := &fakeIsoSource{files: map[string][]byte{}}
	result, err := v.PrepareMedia(template.Context{}, nil, floppy, iso)
	require.NoError(t, err)
	require.Equal(t, base+"aux-floppy.img", result.FloppyImagePath)
	require.Contains(t, floppy.files, "ALTF2ON.$$$")
}

func TestVariantLifecycleDebianVISO(t *testing.T) {
	p := newFrozenProfile(t)
	base := t.TempDir() + string(filepath.Separator)

	v, err := NewVariant(detect.OSDebian, p, detect.NewResult(), profile.VMContext{}, profile.ScriptOverride{}, base)
	require.NoError(t, err)
	require.True(t, v.Spec.AuxISOIsVISO)
	require.Equal(t, base+"aux-iso.viso", v.AuxISOPath())

	require.NoError(t, v.InitInstaller(true))
	require.NoError(t, v.PrepareUnattendedScripts(func(path string) ([]byte, error) {
		return []byte("d-i debconf/priority select critical"), nil
	}))

	iso := &fakeIsoSource{files: map[string][]byte{
		"isolinux/txt.cfg": []byte("default install\nlabel install\n  kernel linux\n  append vga=788 quiet\n"),
	}}
	result, err := v.PrepareMedia(template.Context{}, nil, nil, iso)
	require.NoError(t, err)
	require.Equal(t, base+"aux-iso.viso", result.AuxISOPath)
	require.NotEmpty(t, result.VISOArgv)

	foundRemove := false
	for _, a := range result.VISOArgv {
		if a == "--remove=isolinux/txt.cfg" {
			foundRemove = true
		}
	}
	require.True(t, foundRemove)
}

func TestVariantInitInstallerRejectsMissingISO(t *testing.T) {
	p := newFrozenProfile(t)
	v, err := NewVariant(detect.OSDebian, p, detect.NewResult(), profile.VMContext{}, profile.ScriptOverride{}, t.TempDir()+string(filepath.Separator))
	require.NoError(t, err)
	require.Error(t, v.InitInstaller(false))
}

func TestVariantPrepareMediaRequiresScriptsReady(t *testing.T) {
	p := newFrozenProfile(t)
	v, err := NewVariant(detect.OSDebian, p, detect.NewResult(), profile.VMContext{}, profile.ScriptOverride{}, t.TempDir()+string(filepath.Separator))
	require.NoError(t, err)
	require.NoError(t, v.InitInstaller(true))
	_, err = v.PrepareMedia(template.Context{}, nil, nil, nil)
	require.Error(t, err)
}

func TestNewVariantUnsupportedGuest(t *testing.T) {
	p := newFrozenProfile(t)
	_, err := NewVariant(detect.OSUnknown, p, detect.NewResult(), profile.VMContext{}, profile.ScriptOverride{}, "/tmp/")
	require.Error(t, err)
}

func TestNewVariantNarrowsWindowsVistaPlusToVISOUnderUEFI(t *testing.T) {
	p := newFrozenProfile(t)
	vm := profile.VMContext{Firmware: profile.FirmwareUEFI}
	v, err := NewVariant(detect.OSWindows10, p, detect.NewResult(), vm, profile.ScriptOverride{}, "/tmp/")
	require.NoError(t, err)
	require.False(t, v.Spec.AuxFloppyNeeded)
	require.True(t, v.Spec.AuxISOIsVISO)
}

func TestNewVariantKeepsWindowsVistaPlusFloppyUnderBIOS(t *testing.T) {
	p := newFrozenProfile(t)
	vm := profile.VMContext{Firmware: profile.FirmwareBIOS}
	v, err := NewVariant(detect.OSWindows10, p, detect.NewResult(), vm, profile.ScriptOverride{}, "/tmp/")
	require.NoError(t, err)
	require.True(t, v.Spec.AuxFloppyNeeded)
}
