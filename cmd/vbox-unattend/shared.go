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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vboxunattend/internal/unattend/history"
	"vboxunattend/internal/unattend/installer"
	"vboxunattend/internal/unattend/media"
	"vboxunattend/internal/unattend/orchestrator"
	"vboxunattend/internal/unattend/profile"
)

// flags collects every persistent flag shared by the run/detect/prepare/
// build/reconfigure-plan subcommands. Cobra idiom is one struct of
// package-level vars bound in the root command's init, the way
// osbuild-bootc-image-builder's cmd package does for its own verbs.
type flags struct {
	profilePath string
	isoPath     string
	auxDir      string

	guestOSType string
	is64Bit     bool
	firmware    string
	rtcUTC      bool
	machineUUID string
	machineName string

	historyDB   string
	metricsAddr string
	logLevel    string
}

var flg flags

func loadProfile() (*profile.Profile, error) {
	if flg.profilePath == "" {
		return nil, fmt.Errorf("--profile is required")
	}
	var (
		p   *profile.Profile
		err error
	)
	switch strings.ToLower(filepath.Ext(flg.profilePath)) {
	case ".hcl":
		p, err = profile.LoadHCL(flg.profilePath)
	case ".json":
		raw, rerr := os.ReadFile(flg.profilePath)
		if rerr != nil {
			return nil, fmt.Errorf("read profile: %w", rerr)
		}
		var m map[string]interface{}
		if jerr := json.Unmarshal(raw, &m); jerr != nil {
			return nil, fmt.Errorf("decode profile json: %w", jerr)
		}
		p, err = profile.FromMap(m)
	default:
		return nil, fmt.Errorf("unrecognized profile extension %q (want .hcl or .json)", filepath.Ext(flg.profilePath))
	}
	if err != nil {
		return nil, err
	}
	if flg.isoPath != "" {
		if serr := p.SetInstallationISOPath(flg.isoPath); serr != nil {
			return nil, serr
		}
	}
	return p, nil
}

func vmContext() profile.VMContext {
	fw := profile.FirmwareBIOS
	if strings.EqualFold(flg.firmware, "uefi") {
		fw = profile.FirmwareUEFI
	}
	return profile.VMContext{
		GuestOSTypeID: flg.guestOSType,
		Is64Bit:       flg.is64Bit,
		Firmware:      fw,
		RTCUsesUTC:    flg.rtcUTC,
		MachineUUID:   flg.machineUUID,
		MachineName:   flg.machineName,
	}
}

// auxBase returns flg.auxDir guaranteed to end in a path separator, the
// form every auxBasePath-consuming package in this repo expects.
func auxBase() string {
	dir := flg.auxDir
	if dir == "" {
		dir = "."
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return dir
}

// newOrchestrator opens the installation ISO and, if --history-db is set,
// the audit store, and wires everything into a fresh Orchestrator. The
// aux floppy image is created eagerly at its deterministic path
// (auxBasePath + "aux-floppy.img") since Variant.FloppyPath never varies
// by guest OS; it simply goes unwritten for variants that don't need it.
func newOrchestrator(p *profile.Profile) (*orchestrator.Orchestrator, func(), error) {
	iso, err := media.OpenISO(flg.isoPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open installation iso: %w", err)
	}

	if err := os.MkdirAll(flg.auxDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create aux dir: %w", err)
	}
	floppyWriter, err := media.CreateFloppy(auxBase()+"aux-floppy.img", media.Floppy144Size, true)
	if err != nil {
		return nil, nil, fmt.Errorf("create aux floppy: %w", err)
	}
	var floppy installer.FloppyTarget = floppyWriter

	var hist *history.Store
	var closeHist func()
	if flg.historyDB != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hist, err = history.Open(ctx, flg.historyDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open history db: %w", err)
		}
		closeHist = func() { _ = hist.Close() }
	}

	readTemplate := os.ReadFile

	o := orchestrator.New(iso, iso, floppy, p, vmContext(), p.Scripts(), auxBase(), readTemplate, hist)
	cleanup := func() {
		if closeHist != nil {
			closeHist()
		}
	}
	return o, cleanup, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
