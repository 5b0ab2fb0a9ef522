// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import "fmt"

// Operating states reported in Status.OpState and Record.OpState
const (
	OpStateOff     = 0
	OpStateStartup = 1
	OpStateOn      = 2
)

// Status is the operating state and fault summary returned by STATUS?.
type Status struct {
	OpState      uint8
	PowerOK      uint8
	TripFlags    uint32
	CautionFlags uint32
	BitStat      uint16
}

// ParseStatus decodes a 12-byte STATUS block.
func ParseStatus(raw []byte) (Status, error) {
	if err := checkLength("STATUS", raw, StatusSize); err != nil {
		return Status{}, err
	}
	return Status{
		OpState:      raw[0],
		PowerOK:      raw[1],
		TripFlags:    le32(raw, 2),
		CautionFlags: le32(raw, 6),
		BitStat:      le16(raw, 10),
	}, nil
}

// Render formats the status as a STATUS line. The scaled form appends the
// controller's bad-data count; the raw form omits it.
func (s Status) Render(scale bool, badData int) string {
	if !scale {
		// Flag fields are 32 bits but the downstream parser expects four digits.
		return fmt.Sprintf("STATUS,%02x,%02x,%04x,%04x,%04x%s",
			s.OpState, s.PowerOK, s.TripFlags, s.CautionFlags, s.BitStat, LineEnding)
	}
	return fmt.Sprintf("STATUS,%d,%d,%d,%d,%d,%d%s",
		s.OpState, s.PowerOK, s.TripFlags, s.CautionFlags, s.BitStat, badData, LineEnding)
}
