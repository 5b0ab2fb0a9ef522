// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ipm implements the command set and telemetry layouts of the
// Intelligent Power Monitor (iPM).
//
// The iPM speaks a line-oriented ASCII protocol over a half-duplex serial
// link. Four query commands answer with an ASCII byte count followed by a
// fixed-layout little-endian binary block. This package provides the command
// registry, address slot parsing, the four block decoders and their text
// renderings, and the CRC-32 used by RECORD blocks.
package ipm

// Command names
const (
	CmdOff       = "OFF"
	CmdReset     = "RESET"
	CmdSerialNo  = "SERNO?"
	CmdVersion   = "VER?"
	CmdTest      = "TEST"
	CmdBitResult = "BITRESULT?"
	CmdAddress   = "ADR"
	CmdMeasure   = "MEASURE?"
	CmdStatus    = "STATUS?"
	CmdRecord    = "RECORD?"
)

// Binary payload sizes announced by the data-bearing commands
const (
	BitResultSize = 24
	MeasureSize   = 34
	StatusSize    = 12
	RecordSize    = 68
)

// Response framing
const (
	Terminator     = '\n'
	LineEnding     = "\r\n"
	ResponseOK     = "OK\n"
	SerialNoLength = 7
)

// DefaultFirmwareVersion is the VER? response of the units in service.
const DefaultFirmwareVersion = "VER A022(L) 2018-11-13"

// Bus addressing
const (
	MaxAddresses = 8
	MaxAddress   = 7
	MaxQueryMask = 7
)

// Query mask bits
const (
	QueryStatus  uint8 = 1 << 0
	QueryMeasure uint8 = 1 << 1
	QueryRecord  uint8 = 1 << 2
)

// Unit scales. Raw counts are divided by these to produce engineering units.
const (
	Tenths = 10.0
	Milli  = 1000.0
)

// BITRESULT voltage LSB weights in millivolts per count
const (
	refLSB     = 4.89
	fiveVLSB   = 9.78
	rdvLSB     = 53.76
	itvLSB     = 4.89
	millivolts = 1000.0
)

// CRC-32 (IEEE 802.3, reflected)
const (
	crcPolynomial = 0xEDB88320
	crcInitial    = 0xFFFFFFFF
	crcFinalXor   = 0xFFFFFFFF

	// RecordCRCSpan is the number of leading RECORD bytes covered by the CRC.
	RecordCRCSpan = 64
)
