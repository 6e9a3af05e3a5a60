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

package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"vboxunattend/internal/unattend/history"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/reconfig"
	"vboxunattend/internal/unattend/template"
	"vboxunattend/internal/unattend/unattendutil"
)

type fakeFS struct {
	files map[string][]byte
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	if d, ok := f.files[path]; ok {
		return d, nil
	}
	return nil, errNotFound
}
func (f *fakeFS) FileExists(path string) bool { _, ok := f.files[path]; return ok }
func (f *fakeFS) VolumeLabel() string         { return "TESTVOL" }

var errNotFound = &fakeErr{"not found"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

type fakeIso struct {
	files map[string][]byte
}

func (f *fakeIso) ReadFile(path string) ([]byte, error) {
	if d, ok := f.files[path]; ok {
		return d, nil
	}
	return nil, errNotFound
}
func (f *fakeIso) FileExists(path string) bool            { _, ok := f.files[path]; return ok }
func (f *fakeIso) ReadDir(path string) ([]string, error) { return nil, nil }

type fakeFloppy struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFloppy() *fakeFloppy { return &fakeFloppy{files: map[string][]byte{}} }

func (f *fakeFloppy) WriteFile(name string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = content
	return nil
}

type fakeSession struct {
	view      reconfig.StorageView
	applied   reconfig.Plan
	applyErr  error
	applyCall int
}

func (s *fakeSession) CurrentStorage() (reconfig.StorageView, error) { return s.view, nil }
func (s *fakeSession) ApplyPlan(plan reconfig.Plan) error {
	s.applyCall++
	s.applied = plan
	return s.applyErr
}

func freeBSDFS() *fakeFS {
	return &fakeFS{files: map[string][]byte{
		".profile": []byte("# FreeBSD install media\n"),
	}}
}

func newFreeBSDOrchestrator(t *testing.T) (*Orchestrator, *fakeSession) {
	t.Helper()
	p := profile.New()
	require.NoError(t, p.SetInstallationISOPath("/isos/freebsd.iso"))
	require.NoError(t, p.SetCredentials("vbox", "hunter2", "VBox User"))

	base := t.TempDir() + string(filepath.Separator)
	fs := freeBSDFS()
	iso := &fakeIso{files: map[string][]byte{}}
	readTemplate := func(path string) ([]byte, error) {
		return []byte("installerconfig content, no placeholders"), nil
	}

	o := New(fs, iso, nil, p, profile.VMContext{}, profile.ScriptOverride{}, base, readTemplate, nil)
	return o, &fakeSession{}
}

func TestLifecycleHappyPath(t *testing.T) {
	o, session := newFreeBSDOrchestrator(t)

	result, err := o.Detect()
	require.NoError(t, err)
	require.Equal(t, "FreeBSD", string(result.OSType))

	require.NoError(t, o.Prepare(true))
	require.NoError(t, o.Prepare(true)) // idempotent re-call

	build, err := o.ConstructMedia(template.Context{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, build.VISOArgv)
	require.NotEmpty(t, build.AuxISOPath)

	plan, err := o.ReconfigureVM(session)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Attachments)
	require.Equal(t, 1, session.applyCall)

	require.NoError(t, o.Done())
}

func TestPrepareAutoRunsDetect(t *testing.T) {
	o, _ := newFreeBSDOrchestrator(t)
	require.NoError(t, o.Prepare(true))
	require.Equal(t, stagePrepared, o.stage)
}

func TestConstructMediaBeforePrepareIsWrongOrder(t *testing.T) {
	o, _ := newFreeBSDOrchestrator(t)
	_, err := o.ConstructMedia(template.Context{}, nil)
	require.True(t, unattendutil.Is(err, unattendutil.KindWrongOrder))
}

func TestReconfigureVMBeforeConstructMediaIsWrongOrder(t *testing.T) {
	o, session := newFreeBSDOrchestrator(t)
	require.NoError(t, o.Prepare(true))
	_, err := o.ReconfigureVM(session)
	require.True(t, unattendutil.Is(err, unattendutil.KindWrongOrder))
}

func TestDetectMissingISOPathFails(t *testing.T) {
	p := profile.New()
	o := New(&fakeFS{files: map[string][]byte{}}, &fakeIso{files: map[string][]byte{}}, nil, p, profile.VMContext{}, profile.ScriptOverride{}, t.TempDir()+string(filepath.Separator), nil, nil)
	_, err := o.Detect()
	require.True(t, unattendutil.Is(err, unattendutil.KindMissingFile))
}

func TestPrepareUnsupportedGuestFails(t *testing.T) {
	p := profile.New()
	require.NoError(t, p.SetInstallationISOPath("/isos/unknown.iso"))
	require.NoError(t, p.SetCredentials("vbox", "hunter2", "VBox User"))
	o := New(&fakeFS{files: map[string][]byte{}}, &fakeIso{files: map[string][]byte{}}, nil, p, profile.VMContext{}, profile.ScriptOverride{}, t.TempDir()+string(filepath.Separator), nil, nil)
	err := o.Prepare(true)
	require.True(t, unattendutil.Is(err, unattendutil.KindUnsupportedGuest))
}

func TestReconfigureVMConcurrentCallIsWrongOrder(t *testing.T) {
	o, session := newFreeBSDOrchestrator(t)
	require.NoError(t, o.Prepare(true))
	_, err := o.ConstructMedia(template.Context{}, nil)
	require.NoError(t, err)

	o.reconfiguring.Store(true)
	_, err = o.ReconfigureVM(session)
	require.True(t, unattendutil.Is(err, unattendutil.KindWrongOrder))
	o.reconfiguring.Store(false)
}

func TestReconfigureVMStorageTopologyErrorPropagates(t *testing.T) {
	o, _ := newFreeBSDOrchestrator(t)
	require.NoError(t, o.Prepare(true))
	_, err := o.ConstructMedia(template.Context{}, nil)
	require.NoError(t, err)

	// FreeBSD's recommended DVD bus is SATA (no aux floppy); a maxed-out
	// SATA controller with its single slot already occupied leaves no
	// room for the two DVD slots (original + aux) this run needs.
	session := &fakeSession{view: reconfig.StorageView{Controllers: []reconfig.ControllerView{
		{Name: "SATA", Bus: reconfig.BusSATA, PortCount: 1, MaxPortCount: 1, MaxDevicesPerPort: 1,
			Attachments: []reconfig.AttachmentView{{Port: 0, Device: 0, DeviceType: reconfig.DeviceDVD}}},
	}}}
	_, err = o.ReconfigureVM(session)
	require.Error(t, err)
	require.True(t, unattendutil.Is(err, unattendutil.KindStorageTopology))
}

func TestDoneIsValidFromAnyStage(t *testing.T) {
	o, _ := newFreeBSDOrchestrator(t)
	require.NoError(t, o.Done())
	require.Equal(t, stageDone, o.stage)
}

func TestHistoryRecordsRunLifecycle(t *testing.T) {
	dir := t.TempDir()
	hist, err := history.Open(context.Background(), filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer hist.Close()

	p := profile.New()
	require.NoError(t, p.SetInstallationISOPath("/isos/freebsd.iso"))
	require.NoError(t, p.SetCredentials("vbox", "hunter2", "VBox User"))
	base := t.TempDir() + string(filepath.Separator)
	readTemplate := func(path string) ([]byte, error) { return []byte("content"), nil }

	o := New(freeBSDFS(), &fakeIso{files: map[string][]byte{}}, nil, p, profile.VMContext{}, profile.ScriptOverride{}, base, readTemplate, hist)
	require.NoError(t, o.Prepare(true))
	require.NotEmpty(t, o.runID)

	run, err := hist.GetRun(context.Background(), o.runID)
	require.NoError(t, err)
	require.Equal(t, "FreeBSD", run.DetectedOS)
}
