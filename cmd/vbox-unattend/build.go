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
	"github.com/spf13/cobra"

	"vboxunattend/internal/unattend/template"
)

var cmdBuild = &cobra.Command{
	Use:   "build",
	Short: "Prepare the installer variant and construct its answer media",
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

		if err := o.Prepare(true); err != nil {
			return err
		}
		detection, err := o.Detect()
		if err != nil {
			return err
		}

		tctx := template.Context{VM: vmContext(), Detection: detection}
		result, err := o.ConstructMedia(tctx, template.New())
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}
