// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ipmctl/pkg/config"
	"github.com/Thermoquad/ipmctl/pkg/controller"
	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

var (
	queryAddress int
	queryCommand string
	queryHex     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Send a single command to one bus address",
	Long: `Select a bus address, send one command and print the response. Commands
that return a binary block print the decoded line.

Example:
  ipmctl query -p /dev/ttyS0 -a 0 -c MEASURE?`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryAddress, "address", "a", 0, "Bus address (0-7)")
	queryCmd.Flags().StringVarP(&queryCommand, "command", "c", "", "Command to send")
	queryCmd.Flags().BoolVarP(&queryHex, "hex", "H", false, "Print raw hex instead of scaled values")
	queryCmd.MarkFlagRequired("command")
	rootCmd.AddCommand(queryCmd)
}

// newEngine opens the configured connection and wraps it in an engine.
func newEngine(cfg *config.Config) (*controller.Engine, Connection, string, error) {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	engine := controller.NewEngine(conn,
		ipm.NewRegistry(ipm.WithFirmwareVersion(cfg.Device.FirmwareVersion)),
		controller.WithEmulate(cfg.Device.Emulate))
	return engine, conn, connInfo, nil
}

// sendAndDescribe selects addr, sends command and describes the outcome.
func sendAndDescribe(engine *controller.Engine, addr int, command, arg string, scale bool) (string, error) {
	if !engine.Registry().Verify(command) {
		return "", fmt.Errorf("invalid command %q (valid: %v)", command, engine.Registry().Names())
	}
	if command != ipm.CmdAddress {
		if err := engine.Send(ipm.CmdAddress, strconv.Itoa(addr)); err != nil {
			return "", err
		}
	}
	if err := engine.Send(command, arg); err != nil {
		return "", err
	}

	spec, _ := engine.Registry().Lookup(command)
	if !spec.HasBinaryPayload {
		return fmt.Sprintf("%s: OK\n", command), nil
	}
	return ipm.DecodeLine(command, engine.Payload(command), scale, engine.BadData())
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryAddress < 0 || queryAddress > ipm.MaxAddress {
		return fmt.Errorf("address must be 0-%d, got %d", ipm.MaxAddress, queryAddress)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	engine, conn, connInfo, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	arg := ""
	if queryCommand == ipm.CmdAddress {
		arg = strconv.Itoa(queryAddress)
	}
	out, err := sendAndDescribe(engine, queryAddress, queryCommand, arg, !queryHex)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
