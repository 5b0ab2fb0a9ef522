// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller drives an iPM over a serial channel: the transaction
// engine sends one command and validates its response, and the scheduler
// initializes the configured bus addresses and polls them.
package controller

import (
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

const (
	// ReadWait bounds each read attempt.
	ReadWait = 100 * time.Millisecond
	// EmulateReadWait is added to ReadWait when talking to the emulator.
	EmulateReadWait = time.Second
	// MaxBadData is the cumulative bad-data count that ends a run.
	MaxBadData = 10
)

// Channel is the serial link to the iPM. go.bug.st/serial.Port satisfies it.
// Read returns 0, nil when the read timeout elapses.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Drain() error
	ResetInputBuffer() error
}

// Engine performs single command transactions. It is not safe for
// concurrent use; the link carries one command at a time.
type Engine struct {
	ch       Channel
	registry *ipm.Registry
	stats    *ipm.Statistics
	payloads map[string][]byte
	badData  int
	emulate  bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmulate extends the read wait for the software emulator.
func WithEmulate(emulate bool) EngineOption {
	return func(e *Engine) { e.emulate = emulate }
}

// WithStatistics records transaction outcomes in stats.
func WithStatistics(stats *ipm.Statistics) EngineOption {
	return func(e *Engine) { e.stats = stats }
}

// NewEngine creates an engine on ch.
func NewEngine(ch Channel, registry *ipm.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		ch:       ch,
		registry: registry,
		stats:    ipm.NewStatistics(),
		payloads: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the command table the engine validates against.
func (e *Engine) Registry() *ipm.Registry {
	return e.registry
}

// Stats returns the transaction statistics.
func (e *Engine) Stats() *ipm.Statistics {
	return e.stats
}

// BadData returns the cumulative bad-data count. It is never reset.
func (e *Engine) BadData() int {
	return e.badData
}

// Payload returns the last binary block stored for command.
func (e *Engine) Payload(command string) []byte {
	return e.payloads[command]
}

func (e *Engine) readWait() time.Duration {
	if e.emulate {
		return ReadWait + EmulateReadWait
	}
	return ReadWait
}

// Send transmits name (and arg, if any) and validates the response. For
// data-bearing commands the binary block that follows is read and stored
// under name. Pending input is discarded before Send returns.
func (e *Engine) Send(name, arg string) error {
	spec, ok := e.registry.Lookup(name)
	if !ok {
		e.stats.InvalidCommands.Inc()
		klog.ErrorS(nil, "Invalid command", "command", name)
		return errors.Wrapf(ErrInvalidCommand, "%q", name)
	}

	msg := name
	if arg != "" {
		msg += " " + arg
	}
	msg += "\n"

	defer e.flush()

	if _, err := e.ch.Write([]byte(msg)); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	if err := e.ch.Drain(); err != nil {
		return errors.Wrapf(err, "drain %s", name)
	}
	klog.V(5).InfoS("Sent command", "command", name, "arg", arg)

	want := spec.ReadLength()
	if want == 0 {
		e.stats.Update(nil)
		return nil
	}

	if err := e.ch.SetReadTimeout(e.readWait()); err != nil {
		return errors.Wrap(err, "set read timeout")
	}

	resp, err := e.readLine(want)
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	if len(resp) == 0 {
		return e.fail(ErrTimeout, name, ipm.NewTimeoutError(name, 0, want))
	}
	if verr := ipm.ValidateResponse(spec, resp); verr != nil {
		return e.fail(ErrMismatch, name, verr)
	}

	if spec.HasBinaryPayload {
		size, ok := spec.PayloadLength(resp)
		if !ok {
			return e.fail(ErrMismatch, name, &ipm.ValidationError{
				Type:    ipm.AnomalyInvalidCount,
				Message: "invalid payload count " + string(resp),
			})
		}
		block, err := e.readBlock(size)
		if err != nil {
			return errors.Wrapf(err, "read %s payload", name)
		}
		if len(block) != size {
			return e.fail(ErrTimeout, name, ipm.NewTimeoutError(name, len(block), size))
		}
		e.payloads[name] = block
		e.stats.Payloads.Inc()
	}

	e.stats.Update(nil)
	klog.V(4).InfoS("Command succeeded", "command", name, "response", string(resp))
	return nil
}

// readLine reads one byte at a time until a terminator or max bytes. It
// stops early when a read attempt times out.
func (e *Engine) readLine(max int) ([]byte, error) {
	resp := make([]byte, 0, max)
	buf := make([]byte, 1)
	for len(resp) < max {
		n, err := e.ch.Read(buf)
		if err != nil {
			return resp, err
		}
		if n == 0 {
			break
		}
		resp = append(resp, buf[0])
		if buf[0] == ipm.Terminator {
			break
		}
	}
	return resp, nil
}

// readBlock reads exactly size bytes. Terminator bytes are data here.
func (e *Engine) readBlock(size int) ([]byte, error) {
	block := make([]byte, size)
	got := 0
	for got < size {
		n, err := e.ch.Read(block[got:])
		if err != nil {
			return block[:got], err
		}
		if n == 0 {
			break
		}
		got += n
	}
	return block[:got], nil
}

func (e *Engine) fail(kind error, name string, anomaly *ipm.ValidationError) error {
	e.badData++
	e.stats.Update(anomaly)
	terr := &TransactionError{Kind: kind, Command: name, Anomaly: anomaly, BadData: e.badData}
	klog.InfoS("Bad data from iPM", "command", name, "anomaly", anomaly.Type, "detail", anomaly.Message, "badData", e.badData)
	if e.badData >= MaxBadData {
		klog.ErrorS(ErrBadDataLimit, "Too many bad responses", "badData", e.badData)
	}
	return errors.WithStack(terr)
}

func (e *Engine) flush() {
	if err := e.ch.ResetInputBuffer(); err != nil {
		klog.V(2).InfoS("Failed to flush input", "error", err)
	}
}
