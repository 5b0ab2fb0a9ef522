// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ipmctl/pkg/emulator"
)

var (
	emulateSerialNo  string
	emulateAddresses []uint
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Answer iPM commands on a serial port",
	Long: `Act as an iPM on the serial port given by --port, answering the command set
with captured telemetry. Pair it with a pty bridge to test without hardware:

  socat PTY,echo=0,link=/tmp/instport PTY,echo=0,link=/tmp/userport &
  ipmctl emulate -p /tmp/instport &
  ipmctl run -p /tmp/userport -e -m 1 -r 1 --addr 0,7,30101`,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().StringVar(&emulateSerialNo, "serial-no", emulator.DefaultSerialNo, "SERNO? response")
	emulateCmd.Flags().UintSliceVar(&emulateAddresses, "addresses", []uint{0, 1, 2, 3, 4, 5, 6, 7}, "Bus addresses that answer")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	addrs := make([]uint8, 0, len(emulateAddresses))
	for _, a := range emulateAddresses {
		addrs = append(addrs, uint8(a))
	}
	dev := emulator.New(
		emulator.WithSerialNo(emulateSerialNo),
		emulator.WithFirmwareVersion(cfg.Device.FirmwareVersion),
		emulator.WithAddresses(addrs...),
	)

	port, err := openSerialPort(cfg.Device)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("iPM emulator on %s (addresses %v)\n", cfg.Device.Port, emulateAddresses)
	fmt.Printf("Press Ctrl+C to exit\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return dev.Serve(ctx, port)
}
