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

func TestRewriteKernelArgsRemovesAndAppends(t *testing.T) {
	line := "  append initrd=initrd.img rd.live.check quiet splash"
	prefixEnd := kernelLinePrefixEnd(line)
	out := RewriteKernelArgs(line, prefixEnd, []string{"rd.live.check"}, "ks=cdrom:/ks.cfg", "")
	require.Equal(t, "  append initrd=initrd.img quiet splash ks=cdrom:/ks.cfg", out)
}

func TestRewriteKernelArgsOverrideWinsOverFallback(t *testing.T) {
	line := "append vga=normal"
	out := RewriteKernelArgs(line, kernelLinePrefixEnd(line), nil, "auto=true priority=critical", "fallback=unused")
	require.Equal(t, "append vga=normal auto=true priority=critical", out)
}

func TestRewriteKernelArgsFallsBackWhenOverrideEmpty(t *testing.T) {
	line := "append vga=normal"
	out := RewriteKernelArgs(line, kernelLinePrefixEnd(line), nil, "", "ks=cdrom:/ks.cfg")
	require.Equal(t, "append vga=normal ks=cdrom:/ks.cfg", out)
}

func TestRewriteKernelArgsGlobMatchesKeyValueToken(t *testing.T) {
	line := "append rd.live.check=0 quiet"
	out := RewriteKernelArgs(line, kernelLinePrefixEnd(line), []string{"rd.live.check*"}, "", "")
	require.Equal(t, "append quiet", out)
}

func TestRewriteKernelArgsEmptyTailWithoutExtra(t *testing.T) {
	line := "append rd.live.check"
	out := RewriteKernelArgs(line, kernelLinePrefixEnd(line), []string{"rd.live.check"}, "", "")
	require.Equal(t, "append", out)
}

func TestKernelParamName(t *testing.T) {
	require.Equal(t, "ks=cdrom:/ks.cfg", KernelParamName(KernelParamKsCdrom, "ks.cfg"))
	require.Equal(t, "inst.ks=cdrom:/ks.cfg", KernelParamName(KernelParamInstKs, "ks.cfg"))
	require.Equal(t, "preseed/file=/cdrom/preseed.cfg", KernelParamName(KernelParamPreseed, "preseed.cfg"))
	require.Equal(t, "", KernelParamName(KernelParamNone, "ks.cfg"))
}

func TestKernelLinePrefixEndCaseInsensitive(t *testing.T) {
	require.Equal(t, len("KERNEL "), kernelLinePrefixEnd("KERNEL /install.amd vga=normal"))
	require.Equal(t, len("no-keyword-here"), kernelLinePrefixEnd("no-keyword-here"))
}
