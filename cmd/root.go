// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	goflag "flag"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ipmctl",
	Short: "Intelligent Power Monitor controller",
	Long: `ipmctl - Control an Intelligent Power Monitor (iPM) over a serial link.

Initializes the iPM at each configured bus address, polls MEASURE, STATUS and
RECORD data, and sends the decoded lines over UDP to the acquisition system.
Single commands can be sent with "query" or from the interactive menu.

Connection modes:
  Serial:    --port /dev/ttyS0 [--baud 57600]
  WebSocket: --url ws://host/path [--username user]
  Emulator:  --port emulator

For WebSocket authentication, the password is read from the IPM_PASSWORD
environment variable, or prompted interactively if not set.

Settings may also be read from a YAML file with --config; flags given on the
command line take precedence.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		klog.Flush()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", config.DefaultPort, "Serial port device (\"emulator\" for the built-in iPM emulator)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	bindLoggingFlags(rootCmd.PersistentFlags())
}

// bindLoggingFlags exposes klog's verbosity flags and hides the rest.
func bindLoggingFlags(fs *pflag.FlagSet) {
	notHidden := map[string]bool{
		"v":       true,
		"vmodule": true,
	}

	flagSet := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(flagSet)

	logsFs := pflag.NewFlagSet("klog", pflag.ContinueOnError)
	logsFs.AddGoFlagSet(flagSet)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if !notHidden[f.Name] {
			f.Hidden = true
		}
	})
	fs.AddFlagSet(logsFs)
}

// loadConfig reads --config, if given, then applies flags set on the
// command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") || configPath == "" {
		cfg.Device.Port = portName
	}
	if flags.Changed("baud") || configPath == "" {
		cfg.Device.Baud = baudRate
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
