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
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/config"
	"github.com/Thermoquad/ipmctl/pkg/controller"
	"github.com/Thermoquad/ipmctl/pkg/ipm"
	"github.com/Thermoquad/ipmctl/pkg/sink"
)

var (
	runRate        int
	runPeriod      int
	runNumAddr     int
	runAddresses   []string
	runHost        string
	runHex         bool
	runEmulateFlag bool
	runEcho        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Initialize the iPM and poll it continuously",
	Long: `Initialize the iPM at every configured bus address, then poll MEASURE and
STATUS at the measure rate and RECORD once per record period, sending each
decoded line over UDP to the port configured for its address.

Each --addr is an "addr,mask,port" triple: bus address 0-7, query mask
(1=STATUS, 2=MEASURE, 4=RECORD) and UDP port.

Example:
  ipmctl run -p /dev/ttyS0 -m 1 -r 10 --addr 0,7,30101 --addr 1,3,30102

The process exits with status 1 after 10 bad responses so that a supervisor
can restart it.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runRate, "rate", "m", 0, "STATUS and MEASURE rate (Hz)")
	runCmd.Flags().IntVarP(&runPeriod, "period", "r", 0, "RECORD period (minutes)")
	runCmd.Flags().IntVarP(&runNumAddr, "num-addr", "n", 0, "Number of addresses (must match --addr count)")
	runCmd.Flags().StringArrayVar(&runAddresses, "addr", nil, "Address triple addr,mask,port (repeatable, up to 8)")
	runCmd.Flags().StringVar(&runHost, "host", config.DefaultHost, "UDP destination host")
	runCmd.Flags().BoolVarP(&runHex, "hex", "H", false, "Send raw hex instead of scaled values")
	runCmd.Flags().BoolVarP(&runEmulateFlag, "emulate", "e", false, "Extend read timeouts for a software emulator")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "Also print every line to stdout")
	rootCmd.AddCommand(runCmd)
}

func runConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.Polling.Rate = runRate
	}
	if flags.Changed("period") {
		cfg.Polling.Period = runPeriod
	}
	if flags.Changed("num-addr") {
		cfg.Polling.NumAddresses = runNumAddr
	}
	if flags.Changed("addr") {
		cfg.Addresses = runAddresses
	}
	if flags.Changed("host") || cfg.Output.Host == "" {
		cfg.Output.Host = runHost
	}
	if flags.Changed("hex") {
		cfg.Output.Hex = runHex
	}
	if flags.Changed("emulate") {
		cfg.Device.Emulate = runEmulateFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}
	slots, err := cfg.Slots()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	udp, err := sink.NewUDP(cfg.Output.Host, slots.Slots())
	if err != nil {
		return err
	}
	defer udp.Close()

	var out controller.Sink = udp
	if runEcho {
		out = sink.Multi{udp, sink.NewWriter(os.Stdout)}
	}

	fmt.Printf("ipmctl - iPM controller\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Addresses:  %d, rate %d Hz, record period %d min\n", slots.Len(), cfg.Polling.Rate, cfg.Polling.Period)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := ipm.NewStatistics()
	engine := controller.NewEngine(conn,
		ipm.NewRegistry(ipm.WithFirmwareVersion(cfg.Device.FirmwareVersion)),
		controller.WithEmulate(cfg.Device.Emulate),
		controller.WithStatistics(stats))
	scheduler := controller.NewScheduler(engine, slots, out, controller.SchedulerConfig{
		Rate:   cfg.Polling.Rate,
		Period: cfg.Polling.Period,
		Scale:  !cfg.Output.Hex,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = scheduler.Run(ctx)
	fmt.Println()
	fmt.Print(stats.String())
	if err != nil {
		klog.ErrorS(err, "Polling stopped")
		klog.Flush()
		conn.Close()
		udp.Close()
		os.Exit(1)
	}
	return nil
}
