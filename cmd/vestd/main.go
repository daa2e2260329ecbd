// SPDX-License-Identifier: GPL-2.0-only

// Command vestd is the daemon's CLI entrypoint, replacing the teacher's
// flat-flag main.go with a cobra command tree (grounded in
// projectqai-hydris's cmd/CMD + per-subcommand init() pattern) carrying
// exactly the four subcommands spec.md §7 requires: daemon start/stop/
// status/ping.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vestd",
	Short: "haptic vest control daemon",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
