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

// Package reconfig implements spec.md §4.5's ReconfigPlanner: a pure
// function over a read-only view of the VM's current storage controllers
// that produces an ordered list of medium attachments and a boot order.
// It has no dependency on a live VM/session object -- the caller applies
// the Plan to whatever collaborator it likes (a real VirtualBox session,
// a test double, ...).
package reconfig

import (
	"errors"
	"sort"

	"vboxunattend/internal/unattend/unattendutil"
)

// Bus is a storage controller bus type. Ordering matters: IDE < SATA <
// SCSI < everything else numerically, per spec.md §3's controller-slot
// total ordering, mirrored from ControllerSlot::operator< in the original
// UnattendedImpl.cpp.
type Bus string

const (
	BusIDE  Bus = "IDE"
	BusSATA Bus = "SATA"
	BusSCSI Bus = "SCSI"
	BusUSB  Bus = "USB"
	BusNVMe Bus = "NVMe"
)

// busPriority returns the boot-priority rank of a bus, lower sorts first.
// Buses outside the named fast path fall back to their string ordering so
// the comparison stays total without hardcoding every VirtualBox bus type.
func busPriority(b Bus) int {
	switch b {
	case BusIDE:
		return 0
	case BusSATA:
		return 1
	case BusSCSI:
		return 2
	default:
		return 3
	}
}

// DeviceType is the kind of drive attached to a slot.
type DeviceType string

const (
	DeviceDVD     DeviceType = "DVD"
	DeviceFloppy  DeviceType = "Floppy"
	DeviceHardDisk DeviceType = "HardDisk"
)

// AccessMode mirrors VirtualBox's AccessMode_T for a medium attachment.
type AccessMode string

const (
	AccessReadOnly  AccessMode = "ReadOnly"
	AccessReadWrite AccessMode = "ReadWrite"
)

// MaxPortCount is the generic controller port-count ceiling ReconfigPlanner
// will grow a controller to when it runs out of free DVD slots (spec.md
// §4.5 step 5), matching SATA's native 30-port ceiling in VirtualBox --
// the widest bus this engine is likely to grow, so it's a safe universal
// cap for the synthetic controllers this planner may also create.
const MaxPortCount = 30

// AttachmentView is one existing medium attachment reported by the VM,
// the read-only input side of reconfig.StorageView.
type AttachmentView struct {
	Port       int
	Device     int
	DeviceType DeviceType
	MediumSet  bool // true if a medium is currently mounted in this slot
}

// ControllerView is one existing storage controller reported by the VM.
type ControllerView struct {
	Name             string
	Bus              Bus
	PortCount        int
	MaxPortCount     int
	MaxDevicesPerPort int
	Attachments      []AttachmentView
}

// StorageView is the read-only snapshot of "current storage controllers
// and their attachments" spec.md §4.5 takes as input.
type StorageView struct {
	Controllers []ControllerView
}

// ControllerByName returns the controller named name, if any.
func (v StorageView) ControllerByName(name string) (ControllerView, bool) {
	for _, c := range v.Controllers {
		if c.Name == name {
			return c, true
		}
	}
	return ControllerView{}, false
}

// FloppyController returns the first controller on the Floppy bus, if any.
func (v StorageView) FloppyController() (ControllerView, bool) {
	for _, c := range v.Controllers {
		if c.Bus == "Floppy" {
			return c, true
		}
	}
	return ControllerView{}, false
}

// Requirements is the set of media an installer variant needs mounted,
// per spec.md §4.5's inputs.
type Requirements struct {
	AuxFloppyNeeded      bool
	AuxFloppyPath        string
	OriginalISONeeded    bool
	OriginalISOPath      string
	AuxISONeeded         bool
	AuxISOPath           string
	BootFromAuxISO       bool
	RecommendedDVDBus    Bus
	RecommendedDVDController string // name to add/grow if it doesn't exist
}

// Attachment is one entry of the installation-disk list spec.md §3
// describes: where an image goes and whether a controller/slot needs to
// be created first.
type Attachment struct {
	Bus            Bus
	ControllerName string
	DeviceType     DeviceType
	AccessMode     AccessMode
	Port           int
	Device         int
	MountOnly      bool // slot already has a drive; only (re)mount the image
	ImagePath      string
	IsAuxiliary    bool

	// NewController/GrowPortCountTo are set when the plan requires adding a
	// controller or growing an existing one's PortCount before this
	// attachment can be applied.
	NewController      bool
	GrowPortCountTo    int // 0 if no growth needed
}

// Plan is ReconfigPlanner's output: the ordered attachments to apply and
// the resulting boot order (spec.md §4.5 step 8).
type Plan struct {
	Attachments []Attachment
	BootOrder   []DeviceType
}

// errNotEnoughSlots / errNonFloppyAtSlotZero mirror the two fatal conditions
// spec.md §4.5 step 1 names.
var (
	errNonFloppyAtSlotZero = errors.New("non-floppy device occupies floppy controller port 0 device 0")
	errNotEnoughSlots      = errors.New("not enough free DVD slots and controller cannot grow further")
)

// Compute implements spec.md §4.5's eight-step algorithm, returning the
// Plan to apply to the VM.
func Compute(view StorageView, req Requirements) (Plan, error) {
	var attachments []Attachment

	bootableDevice := DeviceDVD
	if req.AuxFloppyNeeded {
		bootableDevice = DeviceFloppy
	}

	if req.AuxFloppyNeeded {
		floppyAttachment, err := planFloppy(view, req)
		if err != nil {
			return Plan{}, err
		}
		attachments = append(attachments, floppyAttachment)
	}

	dvdAttachments, err := planDVDs(view, req)
	if err != nil {
		return Plan{}, err
	}
	attachments = append(attachments, dvdAttachments...)

	other := DeviceDVD
	if bootableDevice == DeviceDVD {
		other = DeviceFloppy
	}
	bootOrder := []DeviceType{DeviceHardDisk, bootableDevice, other}

	return Plan{Attachments: attachments, BootOrder: bootOrder}, nil
}

// planFloppy implements step 1/2/3 (floppy half): find a floppy
// controller's port 0 device 0 slot, ejecting whatever floppy already sits
// there, adding a controller if none exists. Occupation by a non-floppy
// device at that slot is a fatal storage-topology error.
func planFloppy(view StorageView, req Requirements) (Attachment, error) {
	ctrl, ok := view.FloppyController()
	controllerName := "Floppy"
	needsNewController := !ok
	mountOnly := false

	if ok {
		controllerName = ctrl.Name
		for _, a := range ctrl.Attachments {
			if a.Port == 0 && a.Device == 0 {
				if a.DeviceType != DeviceFloppy {
					return Attachment{}, unattendutil.New(unattendutil.KindStorageTopology, "reconfig.planFloppy", errNonFloppyAtSlotZero)
				}
				mountOnly = true
			}
		}
	}

	return Attachment{
		Bus:            "Floppy",
		ControllerName: controllerName,
		DeviceType:     DeviceFloppy,
		AccessMode:     AccessReadWrite,
		Port:           0,
		Device:         0,
		MountOnly:      mountOnly,
		ImagePath:      req.AuxFloppyPath,
		IsAuxiliary:    true,
		NewController:  needsNewController,
	}, nil
}

// slot is the internal representation of a DVD slot candidate, mirroring
// ControllerSlot in the original implementation.
type slot struct {
	bus            Bus
	controllerName string
	port, device   int
	free           bool
	newController  bool
	growPortCount  int
}

func slotLess(a, b slot) bool {
	if a.bus != b.bus {
		if pa, pb := busPriority(a.bus), busPriority(b.bus); pa != pb {
			return pa < pb
		}
		return a.bus < b.bus
	}
	if a.controllerName != b.controllerName {
		return a.controllerName < b.controllerName
	}
	if a.port != b.port {
		return a.port < b.port
	}
	return a.device < b.device
}

// planDVDs implements steps 3-8: enumerate existing DVD slots, grow
// controllers as needed, sort by boot priority, and assign images in
// boot-priority order.
func planDVDs(view StorageView, req Requirements) ([]Attachment, error) {
	var slots []slot

	for _, c := range view.Controllers {
		if c.Bus == "Floppy" {
			continue
		}
		for _, a := range c.Attachments {
			if a.DeviceType == DeviceDVD {
				slots = append(slots, slot{bus: c.Bus, controllerName: c.Name, port: a.Port, device: a.Device, free: false})
			}
		}
	}

	needed := 0
	if req.OriginalISONeeded {
		needed++
	}
	if req.AuxISONeeded {
		needed++
	}

	if needed > len(slots) {
		grown, err := growSlots(view, req, needed-len(slots))
		if err != nil {
			return nil, err
		}
		slots = append(slots, grown...)
	}
	if needed > len(slots) {
		return nil, unattendutil.New(unattendutil.KindStorageTopology, "reconfig.planDVDs", errNotEnoughSlots)
	}

	sort.SliceStable(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })

	var attachments []Attachment
	idx := 0
	assign := func(path string, auxiliary bool) {
		s := slots[idx]
		idx++
		attachments = append(attachments, Attachment{
			Bus:             s.bus,
			ControllerName:  s.controllerName,
			DeviceType:      DeviceDVD,
			AccessMode:      AccessReadOnly,
			Port:            s.port,
			Device:          s.device,
			MountOnly:       !s.free,
			ImagePath:       path,
			IsAuxiliary:     auxiliary,
			NewController:   s.newController,
			GrowPortCountTo: s.growPortCount,
		})
	}

	if req.AuxISONeeded && req.BootFromAuxISO {
		assign(req.AuxISOPath, true)
	}
	if req.OriginalISONeeded {
		assign(req.OriginalISOPath, false)
	}
	if req.AuxISONeeded && !req.BootFromAuxISO {
		assign(req.AuxISOPath, true)
	}

	return attachments, nil
}

// growSlots implements step 5: find free slots on existing controllers
// first, then grow the recommended controller's PortCount (or add it
// fresh) up to MaxPortCount.
func growSlots(view StorageView, req Requirements, need int) ([]slot, error) {
	var free []slot

	for _, c := range view.Controllers {
		if c.Bus == "Floppy" {
			continue
		}
		maxDevices := c.MaxDevicesPerPort
		if maxDevices <= 0 {
			maxDevices = 1
		}
		used := map[[2]int]bool{}
		for _, a := range c.Attachments {
			used[[2]int{a.Port, a.Device}] = true
		}
		for port := 0; port < c.PortCount; port++ {
			for device := 0; device < maxDevices; device++ {
				if used[[2]int{port, device}] {
					continue
				}
				free = append(free, slot{bus: c.Bus, controllerName: c.Name, port: port, device: device, free: true})
				if len(free) >= need {
					return free, nil
				}
			}
		}
	}

	ctrl, ok := view.ControllerByName(req.RecommendedDVDController)
	maxDevices := 1
	portCount := 0
	maxPortCount := MaxPortCount
	newController := !ok
	if ok {
		if ctrl.MaxDevicesPerPort > 0 {
			maxDevices = ctrl.MaxDevicesPerPort
		}
		portCount = ctrl.PortCount
		if ctrl.MaxPortCount > 0 {
			maxPortCount = ctrl.MaxPortCount
		}
	}

	remaining := need - len(free)
	newPortsNeeded := (remaining + maxDevices - 1) / maxDevices
	if portCount+newPortsNeeded > maxPortCount {
		return free, nil // caller turns the shortfall into errNotEnoughSlots
	}

	for port := portCount; port < portCount+newPortsNeeded; port++ {
		for device := 0; device < maxDevices; device++ {
			s := slot{
				bus:            req.RecommendedDVDBus,
				controllerName: req.RecommendedDVDController,
				port:           port,
				device:         device,
				free:           true,
				newController:  newController,
				growPortCount:  portCount + newPortsNeeded,
			}
			newController = false // only the first slot in the batch needs to flag controller creation
			free = append(free, s)
			if len(free) >= need {
				return free, nil
			}
		}
	}
	return free, nil
}
