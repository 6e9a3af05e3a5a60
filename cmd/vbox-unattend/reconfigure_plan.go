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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vboxunattend/internal/unattend/reconfig"
	"vboxunattend/internal/unattend/template"
)

var storageViewPath string

func init() {
	cmdReconfigurePlan.Flags().StringVar(&storageViewPath, "storage-view", "", "path to a JSON reconfig.StorageView describing the VM's current storage controllers (required)")
}

// dryRunSession answers CurrentStorage from a JSON file and records,
// rather than applies, the computed Plan -- there is no live VirtualBox
// session to attach media to outside of the VM runtime this spec's
// non-goals exclude.
type dryRunSession struct {
	view reconfig.StorageView
}

func (s dryRunSession) CurrentStorage() (reconfig.StorageView, error) { return s.view, nil }
func (s dryRunSession) ApplyPlan(plan reconfig.Plan) error            { return nil }

var cmdReconfigurePlan = &cobra.Command{
	Use:   "reconfigure-plan",
	Short: "Compute the VM storage reconfiguration plan without applying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if storageViewPath == "" {
			return fmt.Errorf("--storage-view is required")
		}
		raw, err := os.ReadFile(storageViewPath)
		if err != nil {
			return fmt.Errorf("read storage view: %w", err)
		}
		var view reconfig.StorageView
		if err := json.Unmarshal(raw, &view); err != nil {
			return fmt.Errorf("decode storage view: %w", err)
		}

		p, err := loadProfile()
		if err != nil {
			return err
		}
		o, cleanup, err := newOrchestrator(p)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := o.Prepare(true); err != nil {
			return err
		}
		detection, err := o.Detect()
		if err != nil {
			return err
		}
		tctx := template.Context{VM: vmContext(), Detection: detection}
		if _, err := o.ConstructMedia(tctx, template.New()); err != nil {
			return err
		}

		plan, err := o.ReconfigureVM(dryRunSession{view: view})
		if err != nil {
			return err
		}
		return printJSON(plan)
	},
}
