// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

const (
	// ClearAttempts bounds the wake-up retry of Clear.
	ClearAttempts = 10
	// ClearInterval separates Clear attempts.
	ClearInterval = 500 * time.Millisecond
	// OffResetDelay must exceed the 100 ms the iPM needs between OFF and RESET.
	OffResetDelay = 110 * time.Millisecond
	// NoAddressDelay keeps a supervisor from restarting in a tight loop.
	NoAddressDelay = 5 * time.Second
	// PassOverhead is the measured cost of one polling pass.
	PassOverhead = 200 * time.Millisecond
)

// Sink receives one finished output line per decoded block.
type Sink interface {
	Send(slot ipm.AddressSlot, line string) error
}

// SchedulerConfig holds the polling parameters.
type SchedulerConfig struct {
	// Rate is the MEASURE/STATUS rate in Hz.
	Rate int
	// Period is the RECORD period in minutes.
	Period int
	// Scale selects engineering units over raw hex output.
	Scale bool
}

// Scheduler initializes and polls the configured bus addresses.
type Scheduler struct {
	engine *Engine
	slots  *ipm.SlotList
	sink   Sink
	config SchedulerConfig

	recordFrequency int
	recordCount     int

	sleep func(time.Duration)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSleep replaces time.Sleep.
func WithSleep(sleep func(time.Duration)) SchedulerOption {
	return func(s *Scheduler) { s.sleep = sleep }
}

// NewScheduler creates a scheduler polling slots through engine.
func NewScheduler(engine *Engine, slots *ipm.SlotList, sink Sink, config SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		engine:          engine,
		slots:           slots,
		sink:            sink,
		config:          config,
		recordFrequency: RecordFrequency(config.Rate, config.Period),
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordFrequency returns the number of passes between RECORD queries.
func RecordFrequency(rate, period int) int {
	return period * 60 * rate
}

// PaceInterval returns the pause between passes at rate Hz.
func PaceInterval(rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	micros := 1000000/rate - int(PassOverhead/time.Microsecond)
	if micros <= 0 {
		return 0
	}
	return time.Duration(micros) * time.Microsecond
}

// RecordFrequency returns the configured passes between RECORD queries.
func (s *Scheduler) RecordFrequency() int {
	return s.recordFrequency
}

// RecordCount returns the passes since the last RECORD query.
func (s *Scheduler) RecordCount() int {
	return s.recordCount
}

// Slots returns the address list. Init may have removed entries.
func (s *Scheduler) Slots() *ipm.SlotList {
	return s.slots
}

// SetActiveAddress selects the bus address that answers later commands.
func (s *Scheduler) SetActiveAddress(addr uint8) error {
	return s.engine.Send(ipm.CmdAddress, strconv.Itoa(int(addr)))
}

// Clear repeats a harmless query until the iPM at addr answers cleanly.
// Units sometimes wake with stray bytes on the line that corrupt the first
// few commands.
func (s *Scheduler) Clear(addr uint8) error {
	var err error
	for i := 0; i < ClearAttempts; i++ {
		if i > 0 {
			s.sleep(ClearInterval)
		}
		if err = s.SetActiveAddress(addr); err == nil {
			if err = s.engine.Send(ipm.CmdVersion, ""); err == nil {
				klog.V(2).InfoS("iPM cleared", "address", addr, "attempts", i+1)
				return nil
			}
		}
		if IsFatal(err) {
			return err
		}
	}
	return errors.Wrapf(err, "clear address %d failed after %d attempts", addr, ClearAttempts)
}

// Init prepares every configured address for polling. Addresses that
// reject OFF are removed from the list.
func (s *Scheduler) Init() error {
	for i := 0; i < s.slots.Len(); {
		slot := s.slots.At(i)

		if err := s.SetActiveAddress(slot.Address); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.ErrorS(err, "Failed to select address", "address", slot.Address)
			i++
			continue
		}

		if err := s.Clear(slot.Address); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.ErrorS(err, "Failed to clear iPM", "address", slot.Address)
		}

		if err := s.engine.Send(ipm.CmdOff, ""); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.ErrorS(err, "iPM did not accept OFF, removing address", "address", slot.Address)
			s.slots.Remove(i)
			continue
		}

		s.sleep(OffResetDelay)

		for _, cmd := range []string{ipm.CmdReset, ipm.CmdSerialNo, ipm.CmdVersion, ipm.CmdTest} {
			if err := s.engine.Send(cmd, ""); err != nil {
				return errors.Wrapf(err, "init address %d", slot.Address)
			}
		}

		if err := s.engine.Send(ipm.CmdBitResult, ""); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.ErrorS(err, "BITRESULT failed", "address", slot.Address)
		} else if bit, err := ipm.ParseBitResult(s.engine.Payload(ipm.CmdBitResult)); err == nil {
			klog.InfoS("iPM ready", "address", slot.Address, "temperature", bit.Temperature(), "bitStatus", bit.BitStatus)
		}

		i++
	}

	if s.slots.Len() == 0 {
		s.sleep(NoAddressDelay)
		return ErrNoAddresses
	}
	return nil
}

// Loop runs one polling pass over every address. Queries go out in the
// order MEASURE, STATUS, RECORD. Any failed command aborts the pass.
func (s *Scheduler) Loop() error {
	s.recordCount++
	recordDue := s.recordCount >= s.recordFrequency
	recordSent := false
	defer func() {
		if recordSent {
			s.recordCount = 0
		}
	}()

	for i := 0; i < s.slots.Len(); i++ {
		slot := s.slots.At(i)

		if err := s.SetActiveAddress(slot.Address); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.V(2).InfoS("Skipping address this pass", "address", slot.Address, "error", err)
			continue
		}

		if slot.Queries(ipm.QueryMeasure) {
			if err := s.query(slot, ipm.CmdMeasure); err != nil {
				return err
			}
		}
		if slot.Queries(ipm.QueryStatus) {
			if err := s.query(slot, ipm.CmdStatus); err != nil {
				return err
			}
		}
		if slot.Queries(ipm.QueryRecord) && recordDue {
			if err := s.query(slot, ipm.CmdRecord); err != nil {
				return err
			}
			recordSent = true
		}
	}
	return nil
}

func (s *Scheduler) query(slot ipm.AddressSlot, cmd string) error {
	if err := s.engine.Send(cmd, ""); err != nil {
		return errors.Wrapf(err, "address %d", slot.Address)
	}
	line, err := ipm.DecodeLine(cmd, s.engine.Payload(cmd), s.config.Scale, s.engine.BadData())
	if err != nil {
		return errors.Wrapf(err, "address %d", slot.Address)
	}
	klog.V(3).InfoS("Decoded", "address", slot.Address, "line", line)
	if err := s.sink.Send(slot, line); err != nil {
		klog.ErrorS(err, "Failed to send line", "address", slot.Address, "port", slot.Port)
	}
	return nil
}

// Sleep pauses between passes.
func (s *Scheduler) Sleep() {
	if d := PaceInterval(s.config.Rate); d > 0 {
		s.sleep(d)
	}
}

// Run initializes the addresses and polls until ctx is done or the
// bad-data limit is reached. A failed pass is logged and the next pass
// starts from the first address.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Init(); err != nil {
		return errors.Wrap(err, "init")
	}
	klog.InfoS("Polling", "addresses", s.slots.Len(), "rate", s.config.Rate, "recordFrequency", s.recordFrequency)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.Loop(); err != nil {
			if IsFatal(err) {
				return err
			}
			klog.ErrorS(err, "Polling pass aborted")
		}
		s.Sleep()
	}
}
