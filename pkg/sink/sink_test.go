// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

func listenUDP(t *testing.T) (*net.UDPConn, uint16) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

func TestUDPSend(t *testing.T) {
	a, portA := listenUDP(t)
	b, portB := listenUDP(t)

	slotA := ipm.AddressSlot{Address: 0, QueryMask: 3, Port: portA}
	slotB := ipm.AddressSlot{Address: 1, QueryMask: 3, Port: portB}
	u, err := NewUDP("127.0.0.1", []ipm.AddressSlot{slotA, slotB, slotA})
	require.NoError(t, err)
	defer u.Close()

	require.NoError(t, u.Send(slotA, "STATUS,2,1,0,0,0,0\r\n"))
	require.NoError(t, u.Send(slotB, "MEASURE,1\r\n"))

	buf := make([]byte, 256)
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "STATUS,2,1,0,0,0,0\r\n", string(buf[:n]))

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "MEASURE,1\r\n", string(buf[:n]))
}

func TestUDPUnknownPort(t *testing.T) {
	u, err := NewUDP("", nil)
	require.NoError(t, err)
	defer u.Close()

	assert.Error(t, u.Send(ipm.AddressSlot{Port: 30010}, "x\r\n"))
}

func TestMultiWriter(t *testing.T) {
	var one, two bytes.Buffer
	m := Multi{NewWriter(&one), NewWriter(&two)}

	require.NoError(t, m.Send(ipm.AddressSlot{Address: 4}, "RECORD,0\r\n"))
	assert.Equal(t, "[4] RECORD,0\r\n", one.String())
	assert.Equal(t, one.String(), two.String())
}
