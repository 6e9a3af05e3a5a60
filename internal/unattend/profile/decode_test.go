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

	"github.com/stretchr/testify/require"
)

func TestFromMapMinimal(t *testing.T) {
	p, err := FromMap(map[string]interface{}{
		"installation_iso": "/isos/ubuntu.iso",
		"login":             "vboxuser",
		"password":          "secret",
		"hostname":          "vm.local",
	})
	require.NoError(t, err)
	require.Equal(t, "/isos/ubuntu.iso", p.InstallationISOPath())
	require.Equal(t, "vm.local", p.Hostname())
}

func TestFromMapWeaklyTypedImageIndex(t *testing.T) {
	p, err := FromMap(map[string]interface{}{
		"installation_iso": "/isos/win.iso",
		"login":             "vboxuser",
		"password":          "secret",
		"image_index":       "2",
	})
	require.NoError(t, err)
	idx, ok := p.ImageIndex()
	require.True(t, ok)
	require.Equal(t, 2, idx)
}

func TestFromMapPackageSelection(t *testing.T) {
	p, err := FromMap(map[string]interface{}{
		"installation_iso":  "/isos/deb.iso",
		"login":              "vboxuser",
		"password":           "secret",
		"package_selection": []interface{}{"minimal"},
	})
	require.NoError(t, err)
	require.True(t, p.IsMinimalInstallation())
}

func TestFromMapPropagatesValidationError(t *testing.T) {
	_, err := FromMap(map[string]interface{}{
		"installation_iso": "/isos/win.iso",
		"login":             "vboxuser",
		"password":          "secret",
		"hostname":          "bad..hostname",
	})
	require.Error(t, err)
}
