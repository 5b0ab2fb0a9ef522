// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emulator is a software stand-in for an iPM. It answers the fixed
// command set with captured telemetry blocks and can inject the faults seen
// on real units.
package emulator

import (
	"strconv"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

// Device holds the emulated iPM state.
type Device struct {
	mu sync.Mutex

	serialNo string
	version  string
	live     map[uint8]bool
	active   uint8

	blocks  map[string][]byte
	silence map[string]int
	corrupt map[string]int

	stray      []byte
	strayCount int

	received []string
}

// Option configures a Device.
type Option func(*Device)

// WithSerialNo sets the SERNO? answer.
func WithSerialNo(serialNo string) Option {
	return func(d *Device) { d.serialNo = serialNo }
}

// WithFirmwareVersion sets the VER? answer (without newline).
func WithFirmwareVersion(version string) Option {
	return func(d *Device) { d.version = version }
}

// WithAddresses sets the bus addresses that answer. Commands sent while any
// other address is active get no response.
func WithAddresses(addrs ...uint8) Option {
	return func(d *Device) {
		d.live = make(map[uint8]bool, len(addrs))
		for _, a := range addrs {
			d.live[a] = true
		}
	}
}

// WithWakeNoise prefixes the first count responses with stray bytes, as a
// unit does when it powers up with garbage on the line.
func WithWakeNoise(stray []byte, count int) Option {
	return func(d *Device) {
		d.stray = stray
		d.strayCount = count
	}
}

// New creates a device answering on every address.
func New(opts ...Option) *Device {
	d := &Device{
		serialNo: DefaultSerialNo,
		version:  ipm.DefaultFirmwareVersion,
		live:     make(map[uint8]bool),
		blocks: map[string][]byte{
			ipm.CmdBitResult: BitResultBlock,
			ipm.CmdMeasure:   MeasureBlock,
			ipm.CmdStatus:    StatusBlock,
			ipm.CmdRecord:    RecordBlock,
		},
		silence: make(map[string]int),
		corrupt: make(map[string]int),
	}
	for a := uint8(0); a <= ipm.MaxAddress; a++ {
		d.live[a] = true
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Silence drops the next n responses to command.
func (d *Device) Silence(command string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silence[command] += n
}

// Corrupt answers the next n instances of command with "ERR\n".
func (d *Device) Corrupt(command string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrupt[command] += n
}

// SetBlock replaces the binary block returned for command.
func (d *Device) SetBlock(command string, block []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[command] = append([]byte(nil), block...)
}

// Received returns every command line received, without terminators.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Respond returns the bytes the iPM sends in answer to one command line.
func (d *Device) Respond(line string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	line = strings.TrimRight(line, "\r\n")
	d.received = append(d.received, line)
	name, arg, _ := strings.Cut(line, " ")

	if name == ipm.CmdAddress {
		if a, err := strconv.ParseUint(arg, 10, 8); err == nil && a <= ipm.MaxAddress {
			d.active = uint8(a)
		}
		return nil
	}

	if !d.live[d.active] {
		klog.V(4).InfoS("Emulator: address not present", "address", d.active, "command", name)
		return nil
	}
	if d.silence[name] > 0 {
		d.silence[name]--
		return nil
	}

	var resp []byte
	if d.corrupt[name] > 0 {
		d.corrupt[name]--
		resp = []byte("ERR\n")
	} else {
		resp = d.answer(name)
	}
	if resp == nil {
		return nil
	}

	if d.strayCount > 0 {
		d.strayCount--
		resp = append(append([]byte(nil), d.stray...), resp...)
	}
	return resp
}

func (d *Device) answer(name string) []byte {
	switch name {
	case ipm.CmdOff, ipm.CmdReset, ipm.CmdTest:
		return []byte(ipm.ResponseOK)
	case ipm.CmdSerialNo:
		return []byte(d.serialNo + "\n")
	case ipm.CmdVersion:
		return []byte(d.version + "\n")
	case ipm.CmdBitResult, ipm.CmdMeasure, ipm.CmdStatus, ipm.CmdRecord:
		block := d.blocks[name]
		resp := []byte(strconv.Itoa(len(block)) + "\n")
		return append(resp, block...)
	}
	return nil
}
