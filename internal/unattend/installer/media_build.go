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
	"errors"
	"os"
	"path/filepath"

	"vboxunattend/internal/unattend/splitter"
	"vboxunattend/internal/unattend/template"
	"vboxunattend/internal/unattend/unattendutil"
)

// FloppyTarget is the narrow collaborator PrepareMedia writes a FAT
// floppy image through; media.FloppyWriter implements it.
type FloppyTarget interface {
	WriteFile(name string, content []byte) error
}

// IsoSource gives PrepareMedia read access to the original installation
// ISO, for OS/2's boot-sector lift and DISK_0..DISK_2 file selection.
type IsoSource interface {
	ReadFile(path string) ([]byte, error)
	FileExists(path string) bool
	ReadDir(path string) ([]string, error)
}

// PrepareMedia implements spec.md §4.4 step 3: expand the main script
// against tctx, then -- depending on Spec.AuxFloppyNeeded/AuxISONeeded --
// write the expanded answer file to a floppy image or assemble a VISO
// descriptor. The post-install script, if one was loaded, is expanded and
// written only on the floppy path of non-OS/2 variants. floppy/iso may be
// nil when the corresponding Spec flag is false.
func (v *Variant) PrepareMedia(tctx template.Context, engine *template.Engine, floppy FloppyTarget, iso IsoSource) (BuildResult, error) {
	if !v.scriptsReady {
		return BuildResult{}, unattendutil.New(unattendutil.KindWrongOrder, "installer.PrepareMedia", errors.New("PrepareUnattendedScripts must succeed first"))
	}
	if engine == nil {
		engine = template.New()
	}

	expanded, err := engine.Expand(v.mainTemplate, v.Store, tctx)
	if err != nil {
		return BuildResult{}, err
	}

	var result BuildResult

	switch {
	case v.Spec.AuxFloppyNeeded:
		if floppy == nil {
			return BuildResult{}, unattendutil.New(unattendutil.KindIOError, "installer.PrepareMedia", errors.New("floppy target required but not provided"))
		}
		if v.osType.IsOS2Family() {
			files, err := splitter.Split(expanded, &namedFloppyWriter{floppy})
			if err != nil {
				return BuildResult{}, err
			}
			result.SplitFiles = files
			treePath := ""
			if v.Detect != nil {
				treePath = v.Detect.Hints["OS2SE20.SRC"]
			}
			if err := writeOS2MandatoryFiles(floppy, iso, treePath); err != nil {
				return BuildResult{}, err
			}
			if err := floppy.WriteFile("ALTF2ON.$$$", []byte("\r\n")); err != nil {
				return BuildResult{}, unattendutil.New(unattendutil.KindIOError, "installer.PrepareMedia", err)
			}
		} else {
			if err := floppy.WriteFile(v.Spec.AnswerFileNameInAux, expanded); err != nil {
				return BuildResult{}, unattendutil.New(unattendutil.KindIOError, "installer.PrepareMedia", err)
			}
			if v.postTemplate != nil {
				postExpanded, err := engine.Expand(v.postTemplate, v.Store, tctx)
				if err != nil {
					return BuildResult{}, err
				}
				if err := floppy.WriteFile(postAnswerFileName(v.Spec), postExpanded); err != nil {
					return BuildResult{}, unattendutil.New(unattendutil.KindIOError, "installer.PrepareMedia", err)
				}
			}
		}
		result.FloppyImagePath = v.FloppyPath()

	case v.Spec.AuxISONeeded && v.Spec.AuxISOIsVISO:
		argv, err := v.buildVISOArgv(expanded, iso)
		if err != nil {
			return BuildResult{}, err
		}
		result.VISOArgv = argv
		result.AuxISOPath = v.AuxISOPath()
	}

	return result, nil
}

func postAnswerFileName(s Spec) string {
	if s.AnswerFileNameInAux == "WINNT.SIF" {
		return "$OEM$\\CMDLINES.TXT"
	}
	return "post-install.cmd"
}

// namedFloppyWriter adapts FloppyTarget to splitter.FileWriter (identical
// method set, kept as a distinct type so installer's public API does not
// leak a splitter-package dependency on FloppyTarget's callers).
type namedFloppyWriter struct{ t FloppyTarget }

func (w *namedFloppyWriter) WriteFile(name string, content []byte) error {
	return w.t.WriteFile(name, content)
}

var _ splitter.FileWriter = (*namedFloppyWriter)(nil)

// buildVISOArgv assembles the descriptor for the Debian/Ubuntu, RHEL-
// family, and FreeBSD variants: import the original ISO, replace the
// chosen boot-menu config with a rewritten one carrying the injected
// kernel parameter, and stage the expanded answer file.
func (v *Variant) buildVISOArgv(expanded []byte, iso IsoSource) ([]string, error) {
	b := NewVISOBuilder()
	b.ImportISO(v.Store.InstallationISOPath())

	answerLocal, err := v.stageFile("answer", expanded)
	if err != nil {
		return nil, err
	}
	b.AddFile(v.Spec.AnswerFileNameInAux, answerLocal)

	if len(v.Spec.BootMenuCandidates) > 0 && iso != nil {
		menuPath, ok := firstExistingInIso(iso, v.Spec.BootMenuCandidates)
		if ok {
			raw, err := iso.ReadFile(menuPath)
			if err != nil {
				return nil, unattendutil.New(unattendutil.KindIOError, "installer.buildVISOArgv", err)
			}
			kernelToken := KernelParamName(v.Spec.KernelParamStyle, v.Spec.AnswerFileNameInAux)
			effectiveExtra := v.Store.ExtraInstallKernelParameters()
			if effectiveExtra == "" {
				effectiveExtra = v.Spec.DefaultExtraKernelParams
			}
			override := kernelToken
			if effectiveExtra != "" {
				override = kernelToken + " " + effectiveExtra
			}
			rewritten := RewriteMenuDefault(string(raw), func(line string) string {
				prefixEnd := kernelLinePrefixEnd(line)
				return RewriteKernelArgs(line, prefixEnd, v.Spec.RemoveKernelParamGlobs, override, "")
			})
			menuLocal, err := v.stageFile("bootmenu", []byte(rewritten))
			if err != nil {
				return nil, err
			}
			b.Remove(menuPath)
			b.AddFile(menuPath, menuLocal)
		}
	}

	return b.Argv(), nil
}

// stageFile writes content to a file under auxBasePath so the external
// VISO-maker backend (which consumes local paths, not bytes) can read it
// back by name. name is a short tag, not the destination ISO path.
func (v *Variant) stageFile(name string, content []byte) (string, error) {
	path := filepath.Join(v.auxBasePath, "viso-staging-"+name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", unattendutil.New(unattendutil.KindIOError, "installer.stageFile", err)
	}
	return path, nil
}

func firstExistingInIso(iso IsoSource, candidates []string) (string, bool) {
	for _, c := range candidates {
		if iso.FileExists(c) {
			return c, true
		}
	}
	return "", false
}

// kernelLinePrefixEnd returns the byte offset where a syslinux "append "/
// "kernel " line's parameter tail begins.
func kernelLinePrefixEnd(line string) int {
	for _, kw := range []string{"append ", "kernel "} {
		if i := indexCaseInsensitive(line, kw); i >= 0 {
			return i + len(kw)
		}
	}
	return len(line)
}

func indexCaseInsensitive(s, substr string) int {
	ls, lsub := []byte(s), []byte(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		match := true
		for j := range lsub {
			a, b := ls[i+j], lsub[j]
			if a >= 'A' && a <= 'Z' {
				a += 'a' - 'A'
			}
			if b >= 'A' && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func writeOS2MandatoryFiles(floppy FloppyTarget, iso IsoSource, treePath string) error {
	if iso == nil {
		return nil
	}
	for _, name := range os2AuxFloppyMandatoryFiles {
		disk, picked, ok := OS2DiskFileName(func(disk int, candidate string) bool {
			return iso.FileExists(diskPath(treePath, disk, candidate))
		}, []string{name, name + "I"})
		if !ok {
			continue
		}
		data, err := iso.ReadFile(diskPath(treePath, disk, picked))
		if err != nil {
			continue
		}
		if err := floppy.WriteFile(name, data); err != nil {
			return unattendutil.New(unattendutil.KindIOError, "installer.writeOS2MandatoryFiles", err)
		}
	}
	return nil
}

func diskPath(treePath string, disk int, name string) string {
	return treePath + "/DISK_" + itoa(disk) + "/" + name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
