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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVISOBuilderArgvOrderAndContent(t *testing.T) {
	b := NewVISOBuilder()
	b.ImportISO("/isos/debian-12.iso").
		Remove("isolinux/txt.cfg").
		AddFile("isolinux/txt.cfg", "/tmp/staged-menu.cfg").
		AddFile("preseed.cfg", "/tmp/staged-preseed.cfg")

	argv := b.Argv()
	require.True(t, len(argv) >= 7)
	require.Contains(t, argv[0], "--file-marker=")
	require.Equal(t, "--file-mode=0444", argv[1])
	require.Equal(t, "--dir-mode=0555", argv[2])
	require.Equal(t, "--import-iso", argv[3])
	require.Equal(t, "/isos/debian-12.iso", argv[4])
	require.Equal(t, "--remove=isolinux/txt.cfg", argv[5])
	require.Equal(t, "isolinux/txt.cfg=/tmp/staged-menu.cfg", argv[6])
	require.Equal(t, "preseed.cfg=/tmp/staged-preseed.cfg", argv[7])
}

func TestVISOBuilderPushPop(t *testing.T) {
	b := NewVISOBuilder()
	b.PushISO("/vboxadditions", "/isos/additions.iso").Pop()
	argv := b.Argv()
	require.Contains(t, argv, "--push-iso")
	require.Contains(t, argv, "/vboxadditions")
	require.Contains(t, argv, "--pop")
}

func TestVISOBuilderArgvIsDefensiveCopy(t *testing.T) {
	b := NewVISOBuilder()
	b.ImportISO("/isos/x.iso")
	a1 := b.Argv()
	a1[0] = "tampered"
	a2 := b.Argv()
	require.NotEqual(t, "tampered", a2[0])
}

func TestVISOBuilderFileMarkerUnique(t *testing.T) {
	a := NewVISOBuilder().Argv()
	b := NewVISOBuilder().Argv()
	require.NotEqual(t, a[0], b[0])
}
