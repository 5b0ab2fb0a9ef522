// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

var crcAddress int

var crcCmd = &cobra.Command{
	Use:   "crc",
	Short: "Compare a RECORD block's CRC with the calculated CRC-32",
	Long: `Query RECORD? once and print the block with the CRC-32 calculated over its
first 64 bytes next to the CRC the iPM reported.

The polling loop never rejects records on CRC; this command is for
investigating whether the two can be made to agree.`,
	RunE: runCRC,
}

func init() {
	crcCmd.Flags().IntVarP(&crcAddress, "address", "a", 0, "Bus address (0-7)")
	rootCmd.AddCommand(crcCmd)
}

func runCRC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, conn, connInfo, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n\n", connInfo)

	if err := engine.Send(ipm.CmdAddress, strconv.Itoa(crcAddress)); err != nil {
		return err
	}
	if err := engine.Send(ipm.CmdRecord, ""); err != nil {
		return err
	}

	raw := engine.Payload(ipm.CmdRecord)
	check, err := ipm.CheckRecordCRC(raw)
	if err != nil {
		return err
	}
	fmt.Print(ipm.FormatCRCCheck(raw, check))
	return nil
}
