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

// vbox-unattend authors unattended-installation media (and plans the VM
// reconfiguration to boot it) for a VirtualBox guest, from one root
// command with subcommands for each step of the lifecycle.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vboxunattend/internal/unattend/metrics"
)

var rootCmd = &cobra.Command{
	Use:           "vbox-unattend",
	Short:         "Author unattended installation media for a VirtualBox guest",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(flg.logLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		logrus.SetLevel(level)

		if flg.metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				if err := http.ListenAndServe(flg.metricsAddr, mux); err != nil {
					logrus.WithError(err).Warn("metrics listener stopped")
				}
			}()
			logrus.WithField("addr", flg.metricsAddr).Info("serving prometheus metrics")
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flg.profilePath, "profile", "", "path to a .hcl or .json install profile")
	pf.StringVar(&flg.isoPath, "iso", "", "path to the guest installation ISO")
	pf.StringVar(&flg.auxDir, "aux-dir", "./aux", "directory auxiliary media (floppy/ISO) is written to")

	pf.StringVar(&flg.guestOSType, "guest-os-type", "", "VirtualBox guest OS type ID (e.g. Windows10_64, Ubuntu_64)")
	pf.BoolVar(&flg.is64Bit, "64bit", true, "guest is a 64-bit OS type")
	pf.StringVar(&flg.firmware, "firmware", "bios", "guest firmware: bios or uefi")
	pf.BoolVar(&flg.rtcUTC, "rtc-utc", true, "guest RTC runs in UTC")
	pf.StringVar(&flg.machineUUID, "machine-uuid", "", "VM machine UUID")
	pf.StringVar(&flg.machineName, "machine-name", "", "VM machine name")

	pf.StringVar(&flg.historyDB, "history-db", "", "path to a sqlite audit-trail database (disabled if empty)")
	pf.StringVar(&flg.metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (disabled if empty)")
	pf.StringVar(&flg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(cmdDetect, cmdPrepare, cmdBuild, cmdReconfigurePlan, cmdRun)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vbox-unattend: %v\n", err)
		os.Exit(1)
	}
}
