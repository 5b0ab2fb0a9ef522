// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ipmctl - iPM Power Monitor Controller
//
// A CLI tool for initializing iPM power monitors on a serial bus, polling
// them and forwarding decoded measurements as UDP datagrams.

package main

import (
	"os"

	"github.com/Thermoquad/ipmctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
