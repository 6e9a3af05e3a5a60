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

	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/unattendutil"

	"github.com/stretchr/testify/require"
)

func newTestProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := profile.New()
	require.NoError(t, p.SetInstallationISOPath("/isos/test.iso"))
	require.NoError(t, p.SetCredentials("vboxuser", "secret", ""))
	return p
}

func TestExpandRoundTripNoPlaceholders(t *testing.T) {
	e := New()
	in := "plain text\nwith no markers at all\n"
	out, err := e.Expand([]byte(in), newTestProfile(t), Context{})
	require.NoError(t, err)
	require.Equal(t, in, string(out))
}

func TestExpandTrivialInsert(t *testing.T) {
	p := newTestProfile(t)
	e := New()
	out, err := e.Expand([]byte("User=@@VBOX_INSERT_USER_LOGIN@@\n"), p, Context{})
	require.NoError(t, err)
	require.Equal(t, "User=vboxuser\n", string(out))
}

func TestExpandShellEscape(t *testing.T) {
	p := newTestProfile(t)
	require.NoError(t, p.SetPostInstallCommand("/bin/x --a=&"))
	e := New()
	out, err := e.Expand([]byte("CMD=@@VBOX_INSERT_POST_INSTALL_COMMAND_SH@@\n"), p, Context{})
	require.NoError(t, err)
	require.Equal(t, "CMD='/bin/x --a=&'\n", string(out))
}

func TestExpandXMLAttribEscape(t *testing.T) {
	p := newTestProfile(t)
	require.NoError(t, p.SetCredentials("vboxuser", "secret", "VBox & VBox;"))
	e := New()
	out, err := e.Expand([]byte(`<u n="@@VBOX_INSERT_USER_FULL_NAME_ATTRIB_DQ@@"/>`+"\n"), p, Context{})
	require.NoError(t, err)
	require.Equal(t, `<u n="VBox &amp; VBox;"/>`+"\n", string(out))
}

func TestExpandConditionalTrueElse(t *testing.T) {
	tmpl := "@@VBOX_COND_HAS_PRODUCT_KEY@@K=@@VBOX_INSERT_PRODUCT_KEY@@@@VBOX_COND_ELSE@@NOKEY@@VBOX_COND_END@@"
	e := New()

	withKey := newTestProfile(t)
	require.NoError(t, withKey.SetProductKey("911"))
	out, err := e.Expand([]byte(tmpl), withKey, Context{})
	require.NoError(t, err)
	require.Equal(t, "K=911", string(out))

	withoutKey := newTestProfile(t)
	out, err = e.Expand([]byte(tmpl), withoutKey, Context{})
	require.NoError(t, err)
	require.Equal(t, "NOKEY", string(out))
}

func TestExpandMissingCondEndFails(t *testing.T) {
	e := New()
	_, err := e.Expand([]byte("@@VBOX_COND_HAS_PROXY@@foo"), newTestProfile(t), Context{})
	require.Error(t, err)
	require.True(t, unattendutil.Is(err, unattendutil.KindParseError))
}

func TestExpandCondElseWithoutCondFails(t *testing.T) {
	e := New()
	_, err := e.Expand([]byte("@@VBOX_COND_ELSE@@x"), newTestProfile(t), Context{})
	require.Error(t, err)
}

func TestExpandNestedFalseSuppressesInner(t *testing.T) {
	tmpl := "@@VBOX_COND_HAS_PRODUCT_KEY@@" +
		"@@VBOX_COND_HAS_PROXY@@inner@@VBOX_COND_END@@" +
		"@@VBOX_COND_END@@"
	p := newTestProfile(t)
	require.NoError(t, p.SetProxy("http://proxy"))
	e := New()
	out, err := e.Expand([]byte(tmpl), p, Context{})
	require.NoError(t, err)
	require.Equal(t, "", string(out))
}

func TestExpandUnknownVariableFails(t *testing.T) {
	e := New()
	_, err := e.Expand([]byte("@@VBOX_INSERT_NOT_A_REAL_VARIABLE@@"), newTestProfile(t), Context{})
	require.Error(t, err)
	require.True(t, unattendutil.Is(err, unattendutil.KindInvalidField))
}

func TestExpandBracketedExprInsert(t *testing.T) {
	p := newTestProfile(t)
	require.NoError(t, p.SetProxy("http://proxy"))
	e := New()
	out, err := e.Expand([]byte("@@VBOX_INSERT[HAS_PROXY]@@"), p, Context{})
	require.NoError(t, err)
	require.Equal(t, "1", string(out))
}

func TestExpandConditionalStackOverflow(t *testing.T) {
	tmpl := ""
	for i := 0; i < MaxConditionalDepth+1; i++ {
		tmpl += "@@VBOX_COND_HAS_PROXY@@"
	}
	e := New()
	_, err := e.Expand([]byte(tmpl), newTestProfile(t), Context{})
	require.Error(t, err)
}

func TestExpandSplitterMarkersPassThroughVerbatim(t *testing.T) {
	tmpl := "@@VBOX_SPLITTER_START[cid.cmd]@@\nbody1\n@@VBOX_SPLITTER_END[cid.cmd]@@\n"
	e := New()
	out, err := e.Expand([]byte(tmpl), newTestProfile(t), Context{})
	require.NoError(t, err)
	require.Equal(t, tmpl, string(out))
}

func TestExpandMalformedPlaceholderOffset(t *testing.T) {
	e := New()
	_, err := e.Expand([]byte("abc@@VBOX_BOGUS_NO_SUCH_VERB@@"), newTestProfile(t), Context{})
	require.Error(t, err)
}
