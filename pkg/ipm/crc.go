// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"fmt"
	"strings"
)

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint32 {
	var table [256]uint32
	for i := range table {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CalculateCRC computes the reflected CRC-32 of data.
func CalculateCRC(data []byte) uint32 {
	crc := uint32(crcInitial)
	for _, b := range data {
		crc = crcTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ crcFinalXor
}

// CRCCheck pairs the CRC computed over a RECORD block with the one the
// device reported in its trailing field.
type CRCCheck struct {
	Calculated uint32
	Reported   uint32
}

// Match reports whether both values agree.
func (c CRCCheck) Match() bool {
	return c.Calculated == c.Reported
}

// CheckRecordCRC computes the CRC over the first RecordCRCSpan bytes of a
// RECORD block. The result is diagnostic only; the device's CRC has never
// been observed to agree with this algorithm.
func CheckRecordCRC(raw []byte) (CRCCheck, error) {
	if len(raw) != RecordSize {
		return CRCCheck{}, fmt.Errorf("record length %d, want %d", len(raw), RecordSize)
	}
	return CRCCheck{
		Calculated: CalculateCRC(raw[:RecordCRCSpan]),
		Reported:   le32(raw, RecordCRCSpan),
	}, nil
}

// FormatCRCCheck renders a hex dump of a RECORD block with both CRC values.
func FormatCRCCheck(raw []byte, check CRCCheck) string {
	var b strings.Builder
	for i := 0; i < len(raw); i += 16 {
		end := i + 16
		if end > len(raw) {
			end = len(raw)
		}
		fmt.Fprintf(&b, "%04x ", i)
		for _, v := range raw[i:end] {
			fmt.Fprintf(&b, " %02x", v)
		}
		b.WriteByte('\n')
	}
	status := "MISMATCH"
	if check.Match() {
		status = "OK"
	}
	fmt.Fprintf(&b, "calculated 0x%08x reported 0x%08x %s\n", check.Calculated, check.Reported, status)
	return b.String()
}
