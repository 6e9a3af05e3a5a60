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

package reconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeAddsFloppyControllerWhenMissing(t *testing.T) {
	view := StorageView{}
	req := Requirements{
		AuxFloppyNeeded:          true,
		AuxFloppyPath:            "/tmp/aux-floppy.img",
		OriginalISONeeded:        true,
		OriginalISOPath:          "/isos/win10.iso",
		RecommendedDVDBus:        BusIDE,
		RecommendedDVDController: "IDE",
	}
	view.Controllers = append(view.Controllers, ControllerView{
		Name: "IDE", Bus: BusIDE, PortCount: 2, MaxPortCount: 2, MaxDevicesPerPort: 2,
		Attachments: []AttachmentView{{Port: 1, Device: 1, DeviceType: DeviceDVD}},
	})

	plan, err := Compute(view, req)
	require.NoError(t, err)
	require.Len(t, plan.Attachments, 2)

	var floppy, dvd *Attachment
	for i := range plan.Attachments {
		a := &plan.Attachments[i]
		switch a.DeviceType {
		case DeviceFloppy:
			floppy = a
		case DeviceDVD:
			dvd = a
		}
	}
	require.NotNil(t, floppy)
	require.True(t, floppy.NewController)
	require.Equal(t, "/tmp/aux-floppy.img", floppy.ImagePath)

	require.NotNil(t, dvd)
	require.True(t, dvd.MountOnly)
	require.Equal(t, "/isos/win10.iso", dvd.ImagePath)

	require.Equal(t, []DeviceType{DeviceHardDisk, DeviceFloppy, DeviceDVD}, plan.BootOrder)
}

func TestComputeFatalOnNonFloppyAtSlotZero(t *testing.T) {
	view := StorageView{Controllers: []ControllerView{
		{Name: "Floppy", Bus: "Floppy", PortCount: 1, Attachments: []AttachmentView{
			{Port: 0, Device: 0, DeviceType: DeviceHardDisk, MediumSet: true},
		}},
	}}
	req := Requirements{AuxFloppyNeeded: true, AuxFloppyPath: "/tmp/aux-floppy.img"}

	_, err := Compute(view, req)
	require.Error(t, err)
}

func TestComputeBootOrderOriginalFirstWhenNotBootingFromAux(t *testing.T) {
	view := StorageView{Controllers: []ControllerView{
		{Name: "SATA", Bus: BusSATA, PortCount: 4, MaxPortCount: 30, MaxDevicesPerPort: 1},
	}}
	req := Requirements{
		OriginalISONeeded:        true,
		OriginalISOPath:          "/isos/debian.iso",
		AuxISONeeded:             true,
		AuxISOPath:               "/tmp/aux-iso.viso",
		BootFromAuxISO:           false,
		RecommendedDVDBus:        BusSATA,
		RecommendedDVDController: "SATA",
	}

	plan, err := Compute(view, req)
	require.NoError(t, err)
	require.Len(t, plan.Attachments, 2)
	require.False(t, plan.Attachments[0].IsAuxiliary)
	require.Equal(t, "/isos/debian.iso", plan.Attachments[0].ImagePath)
	require.True(t, plan.Attachments[1].IsAuxiliary)
	require.Equal(t, []DeviceType{DeviceHardDisk, DeviceDVD, DeviceFloppy}, plan.BootOrder)
}

func TestComputeBootOrderAuxFirstWhenBootingFromAux(t *testing.T) {
	view := StorageView{Controllers: []ControllerView{
		{Name: "SATA", Bus: BusSATA, PortCount: 4, MaxPortCount: 30, MaxDevicesPerPort: 1},
	}}
	req := Requirements{
		OriginalISONeeded:        true,
		OriginalISOPath:          "/isos/debian.iso",
		AuxISONeeded:             true,
		AuxISOPath:               "/tmp/aux-iso.viso",
		BootFromAuxISO:           true,
		RecommendedDVDBus:        BusSATA,
		RecommendedDVDController: "SATA",
	}

	plan, err := Compute(view, req)
	require.NoError(t, err)
	require.True(t, plan.Attachments[0].IsAuxiliary)
	require.Equal(t, "/tmp/aux-iso.viso", plan.Attachments[0].ImagePath)
	require.False(t, plan.Attachments[1].IsAuxiliary)
}

func TestComputeGrowsControllerPortCountWhenSlotsExhausted(t *testing.T) {
	view := StorageView{Controllers: []ControllerView{
		{Name: "IDE", Bus: BusIDE, PortCount: 1, MaxPortCount: 4, MaxDevicesPerPort: 1,
			Attachments: []AttachmentView{{Port: 0, Device: 0, DeviceType: DeviceDVD}}},
	}}
	req := Requirements{
		OriginalISONeeded:        true,
		OriginalISOPath:          "/isos/orig.iso",
		AuxISONeeded:             true,
		AuxISOPath:               "/tmp/aux.viso",
		RecommendedDVDBus:        BusIDE,
		RecommendedDVDController: "IDE",
	}

	plan, err := Compute(view, req)
	require.NoError(t, err)
	require.Len(t, plan.Attachments, 2)

	grew := false
	for _, a := range plan.Attachments {
		if a.GrowPortCountTo > 1 {
			grew = true
		}
	}
	require.True(t, grew)
}

func TestComputeFailsWhenControllerCannotGrowEnough(t *testing.T) {
	view := StorageView{Controllers: []ControllerView{
		{Name: "IDE", Bus: BusIDE, PortCount: 1, MaxPortCount: 1, MaxDevicesPerPort: 1,
			Attachments: []AttachmentView{{Port: 0, Device: 0, DeviceType: DeviceDVD}}},
	}}
	req := Requirements{
		OriginalISONeeded:        true,
		OriginalISOPath:          "/isos/orig.iso",
		AuxISONeeded:             true,
		AuxISOPath:               "/tmp/aux.viso",
		RecommendedDVDBus:        BusIDE,
		RecommendedDVDController: "IDE",
	}

	_, err := Compute(view, req)
	require.Error(t, err)
}

func TestSlotSortOrderingBusPriority(t *testing.T) {
	slots := []slot{
		{bus: BusSCSI, controllerName: "SCSI", port: 0, device: 0},
		{bus: BusIDE, controllerName: "IDE", port: 1, device: 0},
		{bus: BusSATA, controllerName: "SATA", port: 0, device: 0},
	}
	require.True(t, slotLess(slots[1], slots[2]))
	require.True(t, slotLess(slots[2], slots[0]))
}
