// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import "fmt"

// Measure is the instantaneous three-phase measurement returned by MEASURE?.
type Measure struct {
	Freq    uint16 // tenths of Hz
	Temp    uint16 // tenths of a degree C
	VRMS    [3]uint16
	VPeak   [3]uint16
	VDC     [3]uint16 // millivolts
	Phase   [3]uint16 // tenths of a degree
	THD     [3]uint8  // tenths of a percent
	PowerOK uint8
}

// ParseMeasure decodes a 34-byte MEASURE block. Short 1 is reserved.
func ParseMeasure(raw []byte) (Measure, error) {
	if err := checkLength("MEASURE", raw, MeasureSize); err != nil {
		return Measure{}, err
	}
	m := Measure{
		Freq:    le16(raw, 0),
		Temp:    le16(raw, 4),
		PowerOK: raw[33],
	}
	for i := 0; i < 3; i++ {
		m.VRMS[i] = le16(raw, 6+2*i)
		m.VPeak[i] = le16(raw, 12+2*i)
		m.VDC[i] = le16(raw, 18+2*i)
		m.Phase[i] = le16(raw, 24+2*i)
		m.THD[i] = raw[30+i]
	}
	return m, nil
}

// Render formats the measurement as a MEASURE line.
func (m Measure) Render(scale bool) string {
	if !scale {
		return fmt.Sprintf("MEASURE,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%04x,%02x,%02x,%02x,%02x%s",
			m.Freq, m.Temp,
			m.VRMS[0], m.VRMS[1], m.VRMS[2],
			m.VPeak[0], m.VPeak[1], m.VPeak[2],
			m.VDC[0], m.VDC[1], m.VDC[2],
			m.Phase[0], m.Phase[1], m.Phase[2],
			m.THD[0], m.THD[1], m.THD[2],
			m.PowerOK, LineEnding)
	}
	return fmt.Sprintf("MEASURE,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.4f,%.4f,%.4f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%d%s",
		float64(m.Freq)/Tenths, float64(m.Temp)/Tenths,
		float64(m.VRMS[0])/Tenths, float64(m.VRMS[1])/Tenths, float64(m.VRMS[2])/Tenths,
		float64(m.VPeak[0])/Tenths, float64(m.VPeak[1])/Tenths, float64(m.VPeak[2])/Tenths,
		float64(m.VDC[0])/Milli, float64(m.VDC[1])/Milli, float64(m.VDC[2])/Milli,
		float64(m.Phase[0])/Tenths, float64(m.Phase[1])/Tenths, float64(m.Phase[2])/Tenths,
		float64(m.THD[0])/Tenths, float64(m.THD[1])/Tenths, float64(m.THD[2])/Tenths,
		m.PowerOK, LineEnding)
}
