// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thirdspace-vest/vestd/lifecycle"
)

var (
	statusHost string
	statusPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "report whether the daemon is running",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusHost, "host", lifecycle.DefaultHost, "host the daemon listens on")
	statusCmd.Flags().IntVar(&statusPort, "port", lifecycle.DefaultPort, "port the daemon listens on")
	daemonCmd.AddCommand(statusCmd)
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	status := lifecycle.GetDaemonStatus(statusHost, statusPort)
	fmt.Println(status.Message)
	if !status.Running {
		return fmt.Errorf("daemon not running")
	}
	return nil
}
