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
	"fmt"

	"github.com/spf13/cobra"

	"vboxunattend/internal/unattend/detect"
	"vboxunattend/internal/unattend/media"
)

var cmdDetect = &cobra.Command{
	Use:   "detect",
	Short: "Run OS detection against --iso and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flg.isoPath == "" {
			return fmt.Errorf("--iso is required")
		}
		iso, err := media.OpenISO(flg.isoPath)
		if err != nil {
			return fmt.Errorf("open installation iso: %w", err)
		}
		result, err := detect.DefaultChain().Run(iso)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}
