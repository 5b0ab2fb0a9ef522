// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"errors"
	"strings"
	"testing"
)

var (
	bitResultFixture = []byte{0, 0, 254, 1, 255, 3, 25, 2, 24, 2, 88, 1, 0, 0, 0, 0, 39, 2, 249, 1, 249, 1, 253, 1}
	measureFixture   = []byte{88, 2, 0, 0, 5, 2, 139, 4, 139, 4, 0, 0, 4, 6, 252, 5, 0, 0, 28, 0, 28, 0, 9, 0, 201, 13, 200, 6, 7, 7, 27, 27, 1, 1}
	statusFixture    = []byte{2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	recordFixture    = []byte{0, 2, 99, 0, 0, 0, 139, 68, 105, 4, 0, 0, 0, 0, 0, 0, 0, 0, 209, 0, 155, 4, 209, 0, 155, 4, 0, 0, 0, 0, 69, 2, 88, 2, 0, 0, 94, 0, 0, 0, 85, 0, 0, 0, 21, 0, 26, 113, 26, 113, 1, 1, 4, 6, 90, 6, 4, 6, 83, 6, 0, 0, 24, 0, 19, 27, 124, 8}
)

func TestParseBitResult(t *testing.T) {
	b, err := ParseBitResult(bitResultFixture)
	if err != nil {
		t.Fatalf("ParseBitResult() error = %v", err)
	}

	tests := []struct {
		name string
		got  uint16
		want uint16
	}{
		{"BitStatus", b.BitStatus, 0},
		{"HRefV", b.HRefV, 510},
		{"VRefV", b.VRefV, 1023},
		{"FiveV", b.FiveV, 537},
		{"FiveVA", b.FiveVA, 536},
		{"RDV", b.RDV, 344},
		{"ITVA", b.ITVA, 551},
		{"ITVB", b.ITVB, 505},
		{"ITVC", b.ITVC, 505},
		{"Temp", b.Temp, 509},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	if got := b.Temperature(); got != 50.9 {
		t.Errorf("Temperature() = %v, want 50.9", got)
	}
}

func TestBitResultRender(t *testing.T) {
	b, _ := ParseBitResult(bitResultFixture)

	raw := b.Render(false)
	wantRaw := "BITRESULT,0000,01fe,03ff,0219,0218,0158,0227,01f9,01f9,01fd\r\n"
	if raw != wantRaw {
		t.Errorf("Render(false) = %q, want %q", raw, wantRaw)
	}

	scaled := b.Render(true)
	if !strings.HasPrefix(scaled, "BITRESULT,0.00,") || !strings.HasSuffix(scaled, ",50.90\r\n") {
		t.Errorf("Render(true) = %q", scaled)
	}
	if n := strings.Count(scaled, ","); n != 10 {
		t.Errorf("Render(true) has %d fields, want 10", n)
	}
}

func TestMeasureRender(t *testing.T) {
	m, err := ParseMeasure(measureFixture)
	if err != nil {
		t.Fatalf("ParseMeasure() error = %v", err)
	}

	tests := []struct {
		name  string
		scale bool
		want  string
	}{
		{
			name:  "scaled",
			scale: true,
			want:  "MEASURE,60.00,51.70,116.30,116.30,0.00,154.00,153.20,0.00,0.0280,0.0280,0.0090,352.90,173.60,179.90,2.70,2.70,0.10,1\r\n",
		},
		{
			name:  "raw",
			scale: false,
			want:  "MEASURE,0258,0205,048b,048b,0000,0604,05fc,0000,001c,001c,0009,0dc9,06c8,0707,1b,1b,01,01\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Render(tt.scale); got != tt.want {
				t.Errorf("Render(%v) = %q, want %q", tt.scale, got, tt.want)
			}
		})
	}
}

func TestStatusRender(t *testing.T) {
	s, err := ParseStatus(statusFixture)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if s.OpState != OpStateOn {
		t.Errorf("OpState = %d, want %d", s.OpState, OpStateOn)
	}

	if got, want := s.Render(true, 0), "STATUS,2,1,0,0,0,0\r\n"; got != want {
		t.Errorf("Render(true, 0) = %q, want %q", got, want)
	}
	if got, want := s.Render(true, 7), "STATUS,2,1,0,0,0,7\r\n"; got != want {
		t.Errorf("Render(true, 7) = %q, want %q", got, want)
	}
	if got, want := s.Render(false, 7), "STATUS,02,01,0000,0000,0000\r\n"; got != want {
		t.Errorf("Render(false, 7) = %q, want %q", got, want)
	}
}

func TestParseStatusFlags(t *testing.T) {
	raw := []byte{1, 0, 0x78, 0x56, 0x34, 0x12, 0x01, 0, 0, 0x80, 0x34, 0x12}
	s, err := ParseStatus(raw)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if s.TripFlags != 0x12345678 {
		t.Errorf("TripFlags = 0x%x, want 0x12345678", s.TripFlags)
	}
	if s.CautionFlags != 0x80000001 {
		t.Errorf("CautionFlags = 0x%x, want 0x80000001", s.CautionFlags)
	}
	if s.BitStat != 0x1234 {
		t.Errorf("BitStat = 0x%x, want 0x1234", s.BitStat)
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord(recordFixture)
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}

	if r.EventType != 0 || r.OpState != 2 {
		t.Errorf("EventType, OpState = %d, %d, want 0, 2", r.EventType, r.OpState)
	}
	if r.PowerCnt != 99 {
		t.Errorf("PowerCnt = %d, want 99", r.PowerCnt)
	}
	if r.Time != 74007691 {
		t.Errorf("Time = %d, want 74007691", r.Time)
	}
	if r.VRMS[0].Min != 209 {
		t.Errorf("VRMS[A].Min = %d, want 209", r.VRMS[0].Min)
	}
	if r.Freq.Max != 600 {
		t.Errorf("Freq.Max = %d, want 600", r.Freq.Max)
	}
	if r.CRC != 142351123 {
		t.Errorf("CRC = %d, want 142351123", r.CRC)
	}
	if got := r.MinutesSincePowerUp(); got != 1233 {
		t.Errorf("MinutesSincePowerUp() = %d, want 1233", got)
	}
}

func TestRecordRender(t *testing.T) {
	r, _ := ParseRecord(recordFixture)

	scaled := "RECORD,0,2,99,74007691,0,0,20.90,117.90,20.90,117.90,0.00,0.00,58.10,60.00," +
		"0.0000,0.0940,0.0000,0.0850,0.0000,0.0210,2.60,11.30,2.60,11.30,0.10,0.10," +
		"154.00,162.60,154.00,161.90,0.00,2.40,142351123\r\n"
	raw := "RECORD,00,02,00000063,0469448b,00000000,00000000,00d1,049b,00d1,049b,0000,0000,0245,0258," +
		"0000,005e,0000,0055,0000,0015,1a,71,1a,71,01,01,0604,065a,0604,0653,0000,0018,087c1b13\r\n"

	if got := r.Render(true); got != scaled {
		t.Errorf("Render(true) =\n%q\nwant\n%q", got, scaled)
	}
	if got := r.Render(false); got != raw {
		t.Errorf("Render(false) =\n%q\nwant\n%q", got, raw)
	}
}

func TestRenderIdempotent(t *testing.T) {
	r, _ := ParseRecord(recordFixture)
	m, _ := ParseMeasure(measureFixture)
	b, _ := ParseBitResult(bitResultFixture)
	s, _ := ParseStatus(statusFixture)

	for _, scale := range []bool{true, false} {
		if r.Render(scale) != r.Render(scale) {
			t.Errorf("Record.Render(%v) not idempotent", scale)
		}
		if m.Render(scale) != m.Render(scale) {
			t.Errorf("Measure.Render(%v) not idempotent", scale)
		}
		if b.Render(scale) != b.Render(scale) {
			t.Errorf("BitResult.Render(%v) not idempotent", scale)
		}
		if s.Render(scale, 3) != s.Render(scale, 3) {
			t.Errorf("Status.Render(%v) not idempotent", scale)
		}
	}
}

func TestParseLengthMismatch(t *testing.T) {
	tests := []struct {
		name  string
		parse func([]byte) error
		size  int
	}{
		{"bitresult", func(b []byte) error { _, err := ParseBitResult(b); return err }, BitResultSize},
		{"measure", func(b []byte) error { _, err := ParseMeasure(b); return err }, MeasureSize},
		{"status", func(b []byte) error { _, err := ParseStatus(b); return err }, StatusSize},
		{"record", func(b []byte) error { _, err := ParseRecord(b); return err }, RecordSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, n := range []int{0, tt.size - 1, tt.size + 1} {
				err := tt.parse(make([]byte, n))
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("length %d: error = %v, want *ValidationError", n, err)
				}
				if verr.Type != AnomalyLengthMismatch {
					t.Errorf("length %d: Type = %v, want %v", n, verr.Type, AnomalyLengthMismatch)
				}
			}
		})
	}
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		command string
		raw     []byte
		prefix  string
	}{
		{CmdBitResult, bitResultFixture, "BITRESULT,"},
		{CmdMeasure, measureFixture, "MEASURE,"},
		{CmdStatus, statusFixture, "STATUS,"},
		{CmdRecord, recordFixture, "RECORD,"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			line, err := DecodeLine(tt.command, tt.raw, true, 0)
			if err != nil {
				t.Fatalf("DecodeLine() error = %v", err)
			}
			if !strings.HasPrefix(line, tt.prefix) || !strings.HasSuffix(line, LineEnding) {
				t.Errorf("DecodeLine() = %q", line)
			}
		})
	}

	if _, err := DecodeLine(CmdOff, nil, true, 0); err == nil {
		t.Error("DecodeLine(OFF) should fail")
	}
}
