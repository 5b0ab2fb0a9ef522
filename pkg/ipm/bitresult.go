// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import "fmt"

// BitResult is the built-in test report returned by BITRESULT?.
type BitResult struct {
	BitStatus uint16
	HRefV     uint16
	VRefV     uint16
	FiveV     uint16
	FiveVA    uint16
	RDV       uint16
	ITVA      uint16
	ITVB      uint16
	ITVC      uint16
	Temp      uint16 // tenths of a degree C
}

// ParseBitResult decodes a 24-byte BITRESULT block. Shorts 6 and 7 are
// reserved.
func ParseBitResult(raw []byte) (BitResult, error) {
	if err := checkLength("BITRESULT", raw, BitResultSize); err != nil {
		return BitResult{}, err
	}
	return BitResult{
		BitStatus: le16(raw, 0),
		HRefV:     le16(raw, 2),
		VRefV:     le16(raw, 4),
		FiveV:     le16(raw, 6),
		FiveVA:    le16(raw, 8),
		RDV:       le16(raw, 10),
		ITVA:      le16(raw, 16),
		ITVB:      le16(raw, 18),
		ITVC:      le16(raw, 20),
		Temp:      le16(raw, 22),
	}, nil
}

// Temperature returns the board temperature in degrees C.
func (b BitResult) Temperature() float64 {
	return float64(b.Temp) / Tenths
}

func volts(count uint16, lsb float64) float64 {
	return float64(count) * lsb / millivolts
}

// Render formats the report as a BITRESULT line.
func (b BitResult) Render(scale bool) string {
	if !scale {
		return fmt.Sprintf("BITRESULT,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x%s",
			b.BitStatus, b.HRefV, b.VRefV, b.FiveV, b.FiveVA, b.RDV,
			b.ITVA, b.ITVB, b.ITVC, b.Temp, LineEnding)
	}
	return fmt.Sprintf("BITRESULT,%.2f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.2f%s",
		float64(b.BitStatus),
		volts(b.HRefV, refLSB), volts(b.VRefV, refLSB),
		volts(b.FiveV, fiveVLSB), volts(b.FiveVA, fiveVLSB),
		volts(b.RDV, rdvLSB),
		volts(b.ITVA, itvLSB), volts(b.ITVB, itvLSB), volts(b.ITVC, itvLSB),
		b.Temperature(), LineEnding)
}
