// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import "fmt"

// MinMax holds the extremes of one quantity over a record period.
type MinMax[T uint8 | uint16] struct {
	Min T
	Max T
}

// Record is the statistics block returned by RECORD?. Per-phase arrays are
// indexed A, B, C.
type Record struct {
	EventType uint8
	OpState   uint8
	PowerCnt  uint32
	Time      uint32 // milliseconds since power up
	TripFlag  uint32
	CautFlag  uint32
	VRMS      [3]MinMax[uint16] // tenths of a volt
	Freq      MinMax[uint16]    // tenths of Hz
	VDC       [3]MinMax[uint16] // millivolts
	THD       [3]MinMax[uint8]  // tenths of a percent
	VPeak     [3]MinMax[uint16] // tenths of a volt
	CRC       uint32
}

// ParseRecord decodes a 68-byte RECORD block.
//
// The offsets follow what the firmware actually sends, which differs from
// the vendor manual for POWERCNT, TIME and the THD extremes.
func ParseRecord(raw []byte) (Record, error) {
	if err := checkLength("RECORD", raw, RecordSize); err != nil {
		return Record{}, err
	}
	r := Record{
		EventType: raw[0],
		OpState:   raw[1],
		PowerCnt:  le32(raw, 2),
		Time:      le32(raw, 6),
		TripFlag:  le32(raw, 10),
		CautFlag:  le32(raw, 14),
		Freq:      MinMax[uint16]{Min: le16(raw, 30), Max: le16(raw, 32)},
		CRC:       le32(raw, RecordCRCSpan),
	}
	for i := 0; i < 3; i++ {
		r.VRMS[i] = MinMax[uint16]{Min: le16(raw, 18+4*i), Max: le16(raw, 20+4*i)}
		r.VDC[i] = MinMax[uint16]{Min: le16(raw, 34+4*i), Max: le16(raw, 36+4*i)}
		r.THD[i] = MinMax[uint8]{Min: raw[46+2*i], Max: raw[47+2*i]}
		r.VPeak[i] = MinMax[uint16]{Min: le16(raw, 52+4*i), Max: le16(raw, 54+4*i)}
	}
	return r, nil
}

// MinutesSincePowerUp converts Time to whole minutes.
func (r Record) MinutesSincePowerUp() uint32 {
	return r.Time / 60000
}

// Render formats the record as a RECORD line.
func (r Record) Render(scale bool) string {
	if !scale {
		return fmt.Sprintf("RECORD,%02x,%02x,%08x,%08x,%08x,%08x,"+
			"%04x,%04x,%04x,%04x,%04x,%04x,"+
			"%04x,%04x,"+
			"%04x,%04x,%04x,%04x,%04x,%04x,"+
			"%02x,%02x,%02x,%02x,%02x,%02x,"+
			"%04x,%04x,%04x,%04x,%04x,%04x,"+
			"%08x%s",
			r.EventType, r.OpState, r.PowerCnt, r.Time, r.TripFlag, r.CautFlag,
			r.VRMS[0].Min, r.VRMS[0].Max, r.VRMS[1].Min, r.VRMS[1].Max, r.VRMS[2].Min, r.VRMS[2].Max,
			r.Freq.Min, r.Freq.Max,
			r.VDC[0].Min, r.VDC[0].Max, r.VDC[1].Min, r.VDC[1].Max, r.VDC[2].Min, r.VDC[2].Max,
			r.THD[0].Min, r.THD[0].Max, r.THD[1].Min, r.THD[1].Max, r.THD[2].Min, r.THD[2].Max,
			r.VPeak[0].Min, r.VPeak[0].Max, r.VPeak[1].Min, r.VPeak[1].Max, r.VPeak[2].Min, r.VPeak[2].Max,
			r.CRC, LineEnding)
	}
	return fmt.Sprintf("RECORD,%d,%d,%d,%d,%d,%d,"+
		"%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,"+
		"%.2f,%.2f,"+
		"%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,"+
		"%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,"+
		"%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,"+
		"%d%s",
		r.EventType, r.OpState, r.PowerCnt, r.Time, r.TripFlag, r.CautFlag,
		tenths(r.VRMS[0].Min), tenths(r.VRMS[0].Max), tenths(r.VRMS[1].Min), tenths(r.VRMS[1].Max), tenths(r.VRMS[2].Min), tenths(r.VRMS[2].Max),
		tenths(r.Freq.Min), tenths(r.Freq.Max),
		milli(r.VDC[0].Min), milli(r.VDC[0].Max), milli(r.VDC[1].Min), milli(r.VDC[1].Max), milli(r.VDC[2].Min), milli(r.VDC[2].Max),
		tenths(r.THD[0].Min), tenths(r.THD[0].Max), tenths(r.THD[1].Min), tenths(r.THD[1].Max), tenths(r.THD[2].Min), tenths(r.THD[2].Max),
		tenths(r.VPeak[0].Min), tenths(r.VPeak[0].Max), tenths(r.VPeak[1].Min), tenths(r.VPeak[1].Max), tenths(r.VPeak[2].Min), tenths(r.VPeak[2].Max),
		r.CRC, LineEnding)
}

func tenths[T uint8 | uint16](v T) float64 {
	return float64(v) / Tenths
}

func milli[T uint8 | uint16](v T) float64 {
	return float64(v) / Milli
}
