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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleHCL = `
profile {
  installation_iso = "/isos/win10.iso"
  login             = "vboxuser"
  password          = "s3cr3t"
  hostname          = "winvm.lab"
  locale            = "en_US"
  language          = "en"
  country           = "US"
  timezone          = "Europe/Berlin"
  image_index       = 3
}
`

func writeHCL(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.vboxunattend.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadHCL(t *testing.T) {
	path := writeHCL(t, sampleHCL)

	p, err := LoadHCL(path)
	require.NoError(t, err)
	require.Equal(t, "/isos/win10.iso", p.InstallationISOPath())
	require.Equal(t, "winvm.lab", p.Hostname())
	require.Equal(t, "en-US", p.DashLocale())
	require.Equal(t, "Europe/Berlin", p.Timezone())
	idx, ok := p.ImageIndex()
	require.True(t, ok)
	require.Equal(t, 3, idx)
}

func TestLoadHCLMissingRequiredField(t *testing.T) {
	path := writeHCL(t, `
profile {
  login    = "vboxuser"
  password = "s3cr3t"
}
`)
	_, err := LoadHCL(path)
	require.Error(t, err)
}

func TestLoadHCLValidationError(t *testing.T) {
	path := writeHCL(t, `
profile {
  installation_iso = "/isos/win10.iso"
  login             = "vboxuser"
  password          = "s3cr3t"
  hostname          = "bad_host!name.local"
}
`)
	_, err := LoadHCL(path)
	require.Error(t, err)
}
