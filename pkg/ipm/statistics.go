// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// Statistics tracks transaction counts and anomaly rates. Counters are safe
// to read while a transaction is in flight.
type Statistics struct {
	StartTime time.Time

	Transactions    atomic.Uint64
	Successful      atomic.Uint64
	Timeouts        atomic.Uint64
	Mismatches      atomic.Uint64
	LengthErrors    atomic.Uint64
	InvalidCommands atomic.Uint64
	Payloads        atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Update records the outcome of one transaction.
func (s *Statistics) Update(err *ValidationError) {
	s.Transactions.Inc()
	if err == nil {
		s.Successful.Inc()
		return
	}
	switch err.Type {
	case AnomalyTimeout:
		s.Timeouts.Inc()
	case AnomalyMismatch, AnomalyPatternMismatch:
		s.Mismatches.Inc()
	case AnomalyLengthMismatch, AnomalyInvalidCount:
		s.LengthErrors.Inc()
	}
}

// Errors returns the number of failed transactions.
func (s *Statistics) Errors() uint64 {
	return s.Timeouts.Load() + s.Mismatches.Load() + s.LengthErrors.Load()
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	total := s.Transactions.Load()
	ok := s.Successful.Load()

	var okPercent float64
	if total > 0 {
		okPercent = float64(ok) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)
	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", total)
	result += fmt.Sprintf("Successful:      %8d (%.1f%%)\n", ok, okPercent)
	result += fmt.Sprintf("Payloads:        %8d\n", s.Payloads.Load())
	if v := s.Timeouts.Load(); v > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", v)
	}
	if v := s.Mismatches.Load(); v > 0 {
		result += fmt.Sprintf("Mismatches:      %8d\n", v)
	}
	if v := s.LengthErrors.Load(); v > 0 {
		result += fmt.Sprintf("Length Errors:   %8d\n", v)
	}
	if v := s.InvalidCommands.Load(); v > 0 {
		result += fmt.Sprintf("Invalid Commands:%8d\n", v)
	}
	return result
}

// Reset clears all counters
func (s *Statistics) Reset() {
	s.StartTime = time.Now()
	s.Transactions.Store(0)
	s.Successful.Store(0)
	s.Timeouts.Store(0)
	s.Mismatches.Store(0)
	s.LengthErrors.Store(0)
	s.InvalidCommands.Store(0)
	s.Payloads.Store(0)
}
