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

	"vboxunattend/internal/unattend/detect"
)

func TestLookupKnownFamilies(t *testing.T) {
	spec, ok := Lookup(detect.OSWindowsXP)
	require.True(t, ok)
	require.True(t, spec.AuxFloppyNeeded)
	require.Equal(t, "WINNT.SIF", spec.AnswerFileNameInAux)

	spec, ok = Lookup(detect.OSDebian)
	require.True(t, ok)
	require.True(t, spec.AuxISOIsVISO)
	require.Equal(t, KernelParamPreseed, spec.KernelParamStyle)

	spec, ok = Lookup(detect.OSFreeBSD)
	require.True(t, ok)
	require.Equal(t, "/etc/installerconfig", spec.AnswerFileNameInAux)
}

func TestLookupUnknownFamily(t *testing.T) {
	_, ok := Lookup(detect.OSUnknown)
	require.False(t, ok)
}

func TestLookupOracleNarrowsKernelParamStyleAtMajor9(t *testing.T) {
	s8 := LookupOracle("8")
	require.Equal(t, KernelParamKsCdrom, s8.KernelParamStyle)

	s9 := LookupOracle("9")
	require.Equal(t, KernelParamInstKs, s9.KernelParamStyle)

	s10 := LookupOracle("10")
	require.Equal(t, KernelParamInstKs, s10.KernelParamStyle)

	sBad := LookupOracle("not-a-number")
	require.Equal(t, KernelParamKsCdrom, sBad.KernelParamStyle)
}

func TestLookupOracleDoesNotMutateRegistry(t *testing.T) {
	_ = LookupOracle("9")
	base, _ := Lookup(detect.OSOracle)
	require.Equal(t, KernelParamKsCdrom, base.KernelParamStyle)
}
