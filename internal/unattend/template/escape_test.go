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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeShellSimpleWord(t *testing.T) {
	require.Equal(t, "'vboxuser'", Escape(EscapeShell, "vboxuser"))
}

func TestEscapeShellEmbeddedQuote(t *testing.T) {
	require.Equal(t, `'it'\''s'`, Escape(EscapeShell, "it's"))
}

func TestEscapeShellEmpty(t *testing.T) {
	require.Equal(t, "''", Escape(EscapeShell, ""))
}

func TestEscapeXMLElement(t *testing.T) {
	require.Equal(t, "VBox &amp; VBox;", Escape(EscapeXMLElement, "VBox & VBox;"))
	require.Equal(t, "a &lt;b&gt; c", Escape(EscapeXMLElement, "a <b> c"))
}

func TestEscapeXMLAttribDQ(t *testing.T) {
	require.Equal(t, "a &quot;b&quot; c", Escape(EscapeXMLAttribDQ, `a "b" c`))
}

func TestEscapeIdempotenceOnAlreadyEscaped(t *testing.T) {
	once := Escape(EscapeXMLElement, "a & b")
	twice := Escape(EscapeXMLElement, once)
	require.NotEqual(t, once, twice)
	require.Contains(t, twice, "&amp;amp;")
}
