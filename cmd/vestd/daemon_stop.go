// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thirdspace-vest/vestd/lifecycle"
)

var (
	stopHost  string
	stopPort  int
	stopForce bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop a running daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopHost, "host", lifecycle.DefaultHost, "host the daemon listens on")
	stopCmd.Flags().IntVar(&stopPort, "port", lifecycle.DefaultPort, "port the daemon listens on")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "send SIGKILL instead of SIGTERM")
	daemonCmd.AddCommand(stopCmd)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	ok, message := lifecycle.StopDaemon(stopHost, stopPort, stopForce)
	fmt.Println(message)
	if !ok {
		return fmt.Errorf("stop failed")
	}
	return nil
}
