// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thirdspace-vest/vestd/lifecycle"
)

var (
	pingHost string
	pingPort int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "probe a running daemon over its TCP protocol",
	Args:  cobra.NoArgs,
	RunE:  runDaemonPing,
}

func init() {
	pingCmd.Flags().StringVar(&pingHost, "host", lifecycle.DefaultHost, "host the daemon listens on")
	pingCmd.Flags().IntVar(&pingPort, "port", lifecycle.DefaultPort, "port the daemon listens on")
	daemonCmd.AddCommand(pingCmd)
}

func runDaemonPing(cmd *cobra.Command, args []string) error {
	ok, data := lifecycle.PingDaemon(pingHost, pingPort)
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	if !ok {
		return fmt.Errorf("no response from daemon")
	}
	return nil
}
