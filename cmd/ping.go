// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

var (
	pingAddress  int
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link by repeatedly querying VER?",
	Long: `Select a bus address and send VER? a number of times, reporting each result
and a summary. Useful for checking the serial line or WebSocket bridge before
starting the polling loop.

Exit codes:
  0 - All queries answered correctly
  1 - One or more queries failed
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingAddress, "address", "a", 0, "Bus address (0-7)")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of queries to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", time.Second, "Pause between queries")
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, conn, connInfo, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ipmctl - Link Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Address: %d, count %d\n\n", pingAddress, pingCount)

	failed := 0
	for i := 1; i <= pingCount; i++ {
		if i > 1 {
			time.Sleep(pingInterval)
		}
		start := time.Now()
		err := engine.Send(ipm.CmdAddress, strconv.Itoa(pingAddress))
		if err == nil {
			err = engine.Send(ipm.CmdVersion, "")
		}
		if err != nil {
			failed++
			fmt.Printf("[%d] FAIL: %v\n", i, err)
			continue
		}
		fmt.Printf("[%d] OK (%v)\n", i, time.Since(start).Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Print(engine.Stats().String())

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d queries failed\n", failed, pingCount)
		conn.Close()
		os.Exit(1)
	}
	return nil
}
