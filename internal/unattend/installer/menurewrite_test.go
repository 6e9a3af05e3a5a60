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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleIsolinuxCfg = `default vesamenu.c32
timeout 100

label install
  menu label ^Install
  kernel /install.amd
  append vga=788 initrd=/install.amd/initrd.gz rd.live.check --- quiet

label rescue
  menu label ^Rescue mode
  kernel /install.amd
  append rescue/enable=1
`

func TestRewriteMenuDefaultRenamesInstallLabelAndRewritesDefault(t *testing.T) {
	var edited []string
	out := RewriteMenuDefault(sampleIsolinuxCfg, func(line string) string {
		edited = append(edited, line)
		return line + " ks=cdrom:/ks.cfg"
	})

	require.Contains(t, out, "label vboxauto")
	require.Contains(t, out, "default vboxauto")
	require.NotContains(t, out, "default vesamenu.c32")
	require.Len(t, edited, 1)
	require.Contains(t, edited[0], "append vga=788")

	// the rescue block's append line must be untouched
	require.Contains(t, out, "append rescue/enable=1")
}

func TestRewriteMenuDefaultFallsBackToLive(t *testing.T) {
	cfg := "label live\n  menu label ^Try it\n  append quiet\n"
	out := RewriteMenuDefault(cfg, func(line string) string { return line })
	require.Contains(t, out, "label vboxauto")
}

func TestRewriteMenuDefaultPrependsDefaultWhenMissing(t *testing.T) {
	cfg := "label install\n  append quiet\n"
	out := RewriteMenuDefault(cfg, func(line string) string { return line })
	lines := strings.Split(out, "\n")
	require.Equal(t, "default vboxauto", lines[0])
}

func TestRewriteMenuDefaultNoMatchingLabelReturnsUnchanged(t *testing.T) {
	cfg := "label other\n  append quiet\n"
	out := RewriteMenuDefault(cfg, func(line string) string { return line })
	require.Equal(t, cfg, out)
}
