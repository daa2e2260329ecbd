// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thirdspace-vest/vestd"
	"github.com/thirdspace-vest/vestd/lifecycle"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the daemon in the foreground",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

func init() {
	vestd.BindFlags(startCmd.Flags())
	daemonCmd.AddCommand(startCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := vestd.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	status := lifecycle.GetDaemonStatus(cfg.Host, cfg.Port)
	if status.Running {
		return fmt.Errorf("daemon already running: %s", status.Message)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	d, err := vestd.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to compose daemon: %w", err)
	}
	return d.Run()
}
