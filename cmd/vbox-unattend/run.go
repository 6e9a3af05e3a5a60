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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vboxunattend/internal/unattend/reconfig"
	"vboxunattend/internal/unattend/template"
)

var runStorageViewPath string

func init() {
	cmdRun.Flags().StringVar(&runStorageViewPath, "storage-view", "", "path to a JSON reconfig.StorageView; if omitted, reconfiguration is skipped")
}

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the full detect/prepare/build(/reconfigure) pipeline and mark it done",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		o, cleanup, err := newOrchestrator(p)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := o.Detect()
		if err != nil {
			return err
		}
		logrus.WithField("detected_os", result.OSType).Info("detection complete")

		if err := o.Prepare(true); err != nil {
			return err
		}
		logrus.Info("installer variant prepared")

		tctx := template.Context{VM: vmContext(), Detection: result}
		build, err := o.ConstructMedia(tctx, template.New())
		if err != nil {
			return err
		}
		logrus.WithField("aux_iso", build.AuxISOPath).WithField("floppy", build.FloppyImagePath).Info("media constructed")

		var plan reconfig.Plan
		if runStorageViewPath != "" {
			raw, rerr := os.ReadFile(runStorageViewPath)
			if rerr != nil {
				return fmt.Errorf("read storage view: %w", rerr)
			}
			var view reconfig.StorageView
			if jerr := json.Unmarshal(raw, &view); jerr != nil {
				return fmt.Errorf("decode storage view: %w", jerr)
			}
			plan, err = o.ReconfigureVM(dryRunSession{view: view})
			if err != nil {
				return err
			}
			logrus.WithField("attachments", len(plan.Attachments)).Info("reconfiguration planned")
		}

		if err := o.Done(); err != nil {
			return err
		}

		return printJSON(map[string]any{
			"detection": result,
			"media":     build,
			"plan":      plan,
		})
	},
}
