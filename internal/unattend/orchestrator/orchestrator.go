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

// Package orchestrator drives the five-operation lifecycle spec.md §4.6
// names -- detect, prepare, constructMedia, reconfigureVM, done -- over
// detect.Chain, installer.Variant, and reconfig.Compute, enforcing the
// strict ordering and lock discipline of spec.md §5.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/history"
	"vboxunattend/internal/unattend/installer"
	"vboxunattend/internal/unattend/metrics"
	"vboxunattend/internal/unattend/profile"
	"vboxunattend/internal/unattend/reconfig"
	"vboxunattend/internal/unattend/template"
	"vboxunattend/internal/unattend/unattendutil"
)

// stage tracks how far through the lifecycle this Orchestrator has
// progressed. Operations check against this, not against which fields
// happen to be populated, so a retried step can't be mistaken for having
// skipped ahead.
type stage int

const (
	stageInit stage = iota
	stageDetected
	stagePrepared
	stageMediaBuilt
	stageReconfigured
	stageDone
)

// VMSession is the narrow collaborator reconfigureVM needs: a read-only
// snapshot of the VM's current storage topology, and a way to apply the
// computed Plan. A real implementation talks to a live VirtualBox session;
// tests back it with an in-memory fake.
type VMSession interface {
	CurrentStorage() (reconfig.StorageView, error)
	ApplyPlan(plan reconfig.Plan) error
}

// Orchestrator is bound to one ISO/profile/VM triple for its entire
// lifecycle; it is not safe to reuse across a second install attempt once
// Done has been called.
type Orchestrator struct {
	mu          sync.RWMutex
	vmSessionMu sync.Mutex
	reconfiguring atomic.Bool

	fs          detect.FileSystem
	iso         installer.IsoSource
	floppy      installer.FloppyTarget
	profile     *profile.Profile
	vm          profile.VMContext
	overrides   profile.ScriptOverride
	auxBasePath string
	readTemplate func(path string) ([]byte, error)

	hist  *history.Store
	runID string

	chain     detect.Chain
	detection *detect.Result
	variant   *installer.Variant
	build     installer.BuildResult
	plan      reconfig.Plan

	stage stage
}

// New constructs an Orchestrator. fs/iso read the same underlying
// installation ISO through two different narrow interfaces (detection
// vs. media construction); floppy may be nil for guest families that
// never need an answer floppy. hist may be nil to disable audit logging.
func New(fs detect.FileSystem, iso installer.IsoSource, floppy installer.FloppyTarget, prof *profile.Profile, vm profile.VMContext, overrides profile.ScriptOverride, auxBasePath string, readTemplate func(path string) ([]byte, error), hist *history.Store) *Orchestrator {
	return &Orchestrator{
		fs:           fs,
		iso:          iso,
		floppy:       floppy,
		profile:      prof,
		vm:           vm,
		overrides:    overrides,
		auxBasePath:  auxBasePath,
		readTemplate: readTemplate,
		hist:         hist,
		chain:        detect.DefaultChain(),
	}
}

func wrongOrder(op, msg string) error {
	return unattendutil.New(unattendutil.KindWrongOrder, op, errors.New(msg))
}

// Detect runs the ISO OS-detection chain (spec.md §4.3) once. It is safe
// to call detect directly, or to let prepare auto-run it.
func (o *Orchestrator) Detect() (*detect.Result, error) {
	var out *detect.Result
	err := o.timed(metrics.OpDetect, func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.stage >= stageDetected {
			out = o.detection
			return nil
		}
		if o.profile.InstallationISOPath() == "" {
			return unattendutil.New(unattendutil.KindMissingFile, "orchestrator.Detect", errors.New("installation ISO path is not set"))
		}
		result, err := o.chain.Run(o.fs)
		if err != nil {
			return err
		}
		o.detection = result
		o.stage = stageDetected
		out = result
		return nil
	})
	return out, err
}

// Prepare selects and initializes the InstallerVariant (spec.md §4.4 step
// 1/2), auto-running Detect first if it hasn't happened yet. isoExists is
// the caller's answer to "does the installation ISO path resolve to a
// readable local file" -- Orchestrator has no filesystem access of its
// own beyond fs/iso.
func (o *Orchestrator) Prepare(isoExists bool) error {
	return o.timed(metrics.OpPrepare, func() error {
		if _, err := o.Detect(); err != nil {
			return err
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.stage < stageDetected {
			return wrongOrder("orchestrator.Prepare", "detect must succeed first")
		}
		if o.stage >= stagePrepared {
			return nil
		}

		if err := o.profile.Freeze(); err != nil {
			return err
		}
		if idx, ok := o.profile.ImageIndex(); ok && len(o.detection.Images) > 0 {
			if _, found := o.detection.ImageByIndex(idx); !found {
				return unattendutil.Newf(unattendutil.KindInvalidField, "orchestrator.Prepare", "image index %d is not among the detected images", idx)
			}
		}

		v, err := installer.NewVariant(o.detection.OSType, o.profile, o.detection, o.vm, o.overrides, o.auxBasePath)
		if err != nil {
			return err
		}
		if err := v.InitInstaller(isoExists); err != nil {
			return err
		}
		if err := v.PrepareUnattendedScripts(o.readTemplate); err != nil {
			return err
		}

		o.variant = v
		o.stage = stagePrepared
		if o.hist != nil {
			ctx := context.Background()
			runID, err := o.hist.BeginRun(ctx, unattendutil.HashForLog(o.profile.Hostname()+o.profile.Login()))
			if err == nil {
				o.runID = runID
				_ = o.hist.RecordDetection(ctx, runID, string(o.detection.OSType))
				_ = o.hist.RecordVariant(ctx, runID, string(o.detection.OSType))
			}
		}
		return nil
	})
}

// ConstructMedia expands the selected variant's templates and writes the
// aux floppy/ISO/VISO descriptor (spec.md §4.4 step 3).
func (o *Orchestrator) ConstructMedia(tctx template.Context, engine *template.Engine) (installer.BuildResult, error) {
	var out installer.BuildResult
	err := o.timed(metrics.OpConstructMedia, func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.stage < stagePrepared {
			return wrongOrder("orchestrator.ConstructMedia", "prepare must succeed first")
		}
		if o.stage >= stageMediaBuilt {
			out = o.build
			return nil
		}

		result, err := o.variant.PrepareMedia(tctx, engine, o.floppy, o.iso)
		if err != nil {
			return err
		}
		o.build = result
		o.stage = stageMediaBuilt
		out = result

		if o.hist != nil && o.runID != "" {
			ctx := context.Background()
			if result.FloppyImagePath != "" {
				_ = o.hist.RecordMedia(ctx, o.runID, result.FloppyImagePath)
			}
			if result.AuxISOPath != "" {
				_ = o.hist.RecordMedia(ctx, o.runID, result.AuxISOPath)
			}
		}
		return nil
	})
	return out, err
}

// ReconfigureVM computes and applies the storage Plan (spec.md §4.5)
// through session. Per spec.md §5, the Orchestrator's write lock is
// released while the VM-session lock is held, preserving the global
// lock order VM-session > Orchestrator; a reentrancy guard rejects a
// second concurrent call with wrong-order instead of deadlocking.
func (o *Orchestrator) ReconfigureVM(session VMSession) (reconfig.Plan, error) {
	var out reconfig.Plan
	err := o.timed(metrics.OpReconfigureVM, func() error {
		if !o.reconfiguring.CompareAndSwap(false, true) {
			return wrongOrder("orchestrator.ReconfigureVM", "reconfigureVM already in progress on another goroutine")
		}
		defer o.reconfiguring.Store(false)

		o.vmSessionMu.Lock()
		defer o.vmSessionMu.Unlock()

		o.mu.Lock()
		if o.stage < stageMediaBuilt {
			o.mu.Unlock()
			return wrongOrder("orchestrator.ReconfigureVM", "constructMedia must succeed first")
		}
		if o.stage >= stageReconfigured {
			o.mu.Unlock()
			out = o.plan
			return nil
		}
		req := o.requirements()
		o.mu.Unlock()

		view, err := session.CurrentStorage()
		if err != nil {
			return unattendutil.New(unattendutil.KindIOError, "orchestrator.ReconfigureVM", err)
		}

		plan, err := reconfig.Compute(view, req)
		if err != nil {
			return err
		}
		if err := session.ApplyPlan(plan); err != nil {
			return unattendutil.New(unattendutil.KindStorageTopology, "orchestrator.ReconfigureVM", err)
		}

		o.mu.Lock()
		o.plan = plan
		o.stage = stageReconfigured
		o.mu.Unlock()

		if o.hist != nil && o.runID != "" {
			_ = o.hist.RecordReconfigResult(context.Background(), o.runID, summarizePlan(plan))
		}
		out = plan
		return nil
	})
	return out, err
}

// requirements translates the prepared Variant/BuildResult into the
// reconfig.Requirements ReconfigPlanner needs. Must be called with mu
// held.
func (o *Orchestrator) requirements() reconfig.Requirements {
	spec := o.variant.Spec
	bus := recommendedBusFor(spec)
	return reconfig.Requirements{
		AuxFloppyNeeded:          spec.AuxFloppyNeeded,
		AuxFloppyPath:            o.build.FloppyImagePath,
		OriginalISONeeded:        true,
		OriginalISOPath:          o.profile.InstallationISOPath(),
		AuxISONeeded:             spec.AuxISONeeded,
		AuxISOPath:               o.build.AuxISOPath,
		BootFromAuxISO:           spec.AuxISONeeded,
		RecommendedDVDBus:        bus,
		RecommendedDVDController: string(bus),
	}
}

// recommendedBusFor picks the controller bus new DVD slots are grown on.
// Families old enough to still need a floppy predate SATA guest drivers,
// so they get IDE; everything else gets SATA, mirroring VirtualBox's own
// per-guest-OS-type recommended storage bus table.
func recommendedBusFor(spec installer.Spec) reconfig.Bus {
	if spec.AuxFloppyNeeded {
		return reconfig.BusIDE
	}
	return reconfig.BusSATA
}

func summarizePlan(plan reconfig.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d attachment(s), boot order", len(plan.Attachments))
	for _, d := range plan.BootOrder {
		fmt.Fprintf(&b, " %s", d)
	}
	return b.String()
}

// Done releases the InstallerVariant and marks the run complete. It is
// valid to call from any stage, including after a failed earlier step.
func (o *Orchestrator) Done() error {
	return o.timed(metrics.OpDone, func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.variant = nil
		o.stage = stageDone
		if o.hist != nil && o.runID != "" {
			_ = o.hist.FinishRun(context.Background(), o.runID, "", "")
		}
		return nil
	})
}

// timed wraps fn with operation metrics and structured logging, the way
// the teacher's provisioner worker loop logs phase transitions.
func (o *Orchestrator) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveOperation(op, outcomeLabel(err), time.Since(start))
	if err != nil {
		logrus.WithError(err).WithField("op", op).Warn("orchestrator operation failed")
		if o.hist != nil && o.runID != "" && op != metrics.OpDone {
			kind, _ := unattendutil.KindOf(err)
			_ = o.hist.FinishRun(context.Background(), o.runID, string(kind), err.Error())
		}
	} else {
		logrus.WithField("op", op).Debug("orchestrator operation succeeded")
	}
	return err
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := unattendutil.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
