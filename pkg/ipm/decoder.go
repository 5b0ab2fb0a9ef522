// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"encoding/binary"
	"fmt"
)

// le16 reads the little-endian short at byte offset off.
func le16(raw []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(raw[off:])
}

// le32 reads the little-endian long at byte offset off.
func le32(raw []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(raw[off:])
}

func checkLength(kind string, raw []byte, want int) error {
	if len(raw) != want {
		return &ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s block length %d, want %d", kind, len(raw), want),
			Details: map[string]interface{}{"received": len(raw), "expected": want},
		}
	}
	return nil
}

// DecodeLine decodes the binary block returned by command and renders it
// as one output line. badData is only used by STATUS.
func DecodeLine(command string, raw []byte, scale bool, badData int) (string, error) {
	switch command {
	case CmdBitResult:
		b, err := ParseBitResult(raw)
		if err != nil {
			return "", err
		}
		return b.Render(scale), nil
	case CmdMeasure:
		m, err := ParseMeasure(raw)
		if err != nil {
			return "", err
		}
		return m.Render(scale), nil
	case CmdStatus:
		s, err := ParseStatus(raw)
		if err != nil {
			return "", err
		}
		return s.Render(scale, badData), nil
	case CmdRecord:
		r, err := ParseRecord(raw)
		if err != nil {
			return "", err
		}
		return r.Render(scale), nil
	}
	return "", fmt.Errorf("command %s has no binary payload", command)
}
