// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ipmctl/pkg/emulator"
	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

func newTestEngine(opts ...emulator.Option) (*Engine, *emulator.Link) {
	link := emulator.NewLink(emulator.New(opts...))
	return NewEngine(link, ipm.NewRegistry()), link
}

func TestSendSimpleCommand(t *testing.T) {
	e, link := newTestEngine()

	require.NoError(t, e.Send(ipm.CmdOff, ""))
	assert.Equal(t, "OFF\n", string(link.Written()))
	assert.Equal(t, 1, link.Flushes())
	assert.Equal(t, ReadWait, link.ReadTimeout())
	assert.Equal(t, 0, e.BadData())
	assert.EqualValues(t, 1, e.Stats().Successful.Load())
}

func TestSendWithArgument(t *testing.T) {
	e, link := newTestEngine()

	require.NoError(t, e.Send(ipm.CmdAddress, "3"))
	assert.Equal(t, "ADR 3\n", string(link.Written()))
	assert.Equal(t, 1, link.Flushes(), "input is flushed even when no response is read")
}

func TestSendInvalidCommand(t *testing.T) {
	e, link := newTestEngine()

	err := e.Send("HELP?", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCommand))
	assert.Empty(t, link.Written())
	assert.Equal(t, 0, link.Flushes())
	assert.Equal(t, 0, e.BadData())
	assert.EqualValues(t, 1, e.Stats().InvalidCommands.Load())
}

func TestSendBinaryPayload(t *testing.T) {
	tests := []struct {
		command string
		block   []byte
	}{
		{ipm.CmdBitResult, emulator.BitResultBlock},
		{ipm.CmdMeasure, emulator.MeasureBlock},
		{ipm.CmdStatus, emulator.StatusBlock},
		{ipm.CmdRecord, emulator.RecordBlock},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			e, _ := newTestEngine()
			require.NoError(t, e.Send(tt.command, ""))
			assert.Equal(t, tt.block, e.Payload(tt.command))
		})
	}
}

func TestSendPayloadContainingTerminator(t *testing.T) {
	e, link := newTestEngine()
	block := make([]byte, ipm.MeasureSize)
	for i := range block {
		block[i] = '\n'
	}
	link.Device().SetBlock(ipm.CmdMeasure, block)
	link.SetMaxChunk(5)

	require.NoError(t, e.Send(ipm.CmdMeasure, ""))
	assert.Equal(t, block, e.Payload(ipm.CmdMeasure))
}

func TestSendPayloadOverwritten(t *testing.T) {
	e, link := newTestEngine()
	require.NoError(t, e.Send(ipm.CmdStatus, ""))

	next := []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	link.Device().SetBlock(ipm.CmdStatus, next)
	require.NoError(t, e.Send(ipm.CmdStatus, ""))
	assert.Equal(t, next, e.Payload(ipm.CmdStatus))
}

func TestSendTimeout(t *testing.T) {
	e, link := newTestEngine()
	link.Device().Silence(ipm.CmdTest, 1)

	err := e.Send(ipm.CmdTest, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, IsFatal(err))
	assert.Equal(t, 1, e.BadData())
	assert.Equal(t, 1, link.Flushes())

	var verr *ipm.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ipm.AnomalyTimeout, verr.Type)

	require.NoError(t, e.Send(ipm.CmdTest, ""))
	assert.Equal(t, 1, e.BadData(), "bad data count is cumulative")
}

func TestSendMismatch(t *testing.T) {
	e, link := newTestEngine()
	link.Device().Corrupt(ipm.CmdReset, 1)

	err := e.Send(ipm.CmdReset, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
	assert.Equal(t, 1, e.BadData())

	var terr *TransactionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ipm.CmdReset, terr.Command)
}

func TestSendSerialNoPattern(t *testing.T) {
	e, _ := newTestEngine(emulator.WithSerialNo("123456"))
	require.NoError(t, e.Send(ipm.CmdSerialNo, ""))

	e, _ = newTestEngine(emulator.WithSerialNo("203456-7"))
	err := e.Send(ipm.CmdSerialNo, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))

	var verr *ipm.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ipm.AnomalyPatternMismatch, verr.Type)
}

func TestSendStrayBytesFlushed(t *testing.T) {
	e, link := newTestEngine()
	link.Inject([]byte("garbage"))

	require.Error(t, e.Send(ipm.CmdOff, ""))
	require.NoError(t, e.Send(ipm.CmdOff, ""), "flush leaves the line clean for the next command")
}

func TestSendFirmwareVersion(t *testing.T) {
	link := emulator.NewLink(emulator.New(emulator.WithFirmwareVersion("VER B100 2024-02-02")))

	e := NewEngine(link, ipm.NewRegistry())
	require.Error(t, e.Send(ipm.CmdVersion, ""))

	e = NewEngine(link, ipm.NewRegistry(ipm.WithFirmwareVersion("VER B100 2024-02-02")))
	require.NoError(t, e.Send(ipm.CmdVersion, ""))
}

func TestSendEmulateWait(t *testing.T) {
	link := emulator.NewLink(emulator.New())
	e := NewEngine(link, ipm.NewRegistry(), WithEmulate(true))

	require.NoError(t, e.Send(ipm.CmdTest, ""))
	assert.Equal(t, ReadWait+EmulateReadWait, link.ReadTimeout())
}

func TestBadDataLimit(t *testing.T) {
	e, link := newTestEngine()
	link.Device().Silence(ipm.CmdVersion, MaxBadData)

	for i := 1; i < MaxBadData; i++ {
		err := e.Send(ipm.CmdVersion, "")
		require.Error(t, err)
		require.False(t, IsFatal(err), "failure %d", i)
	}

	err := e.Send(ipm.CmdVersion, "")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, MaxBadData, e.BadData())
}
