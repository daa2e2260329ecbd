// SPDX-License-Identifier: GPL-2.0-only

package main

import "github.com/spf13/cobra"

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "manage the vestd background process",
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
