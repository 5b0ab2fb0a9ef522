// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink delivers decoded iPM lines to downstream consumers.
package sink

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

// DefaultHost receives UDP output unless configured otherwise.
const DefaultHost = "127.0.0.1"

// UDP sends each line as one datagram to host on the slot's port.
type UDP struct {
	host  string
	mu    sync.Mutex
	conns map[uint16]*net.UDPConn
}

// NewUDP dials one socket per distinct port in slots.
func NewUDP(host string, slots []ipm.AddressSlot) (*UDP, error) {
	if host == "" {
		host = DefaultHost
	}
	u := &UDP{host: host, conns: make(map[uint16]*net.UDPConn)}
	for _, slot := range slots {
		if _, ok := u.conns[slot.Port]; ok {
			continue
		}
		conn, err := u.dial(slot.Port)
		if err != nil {
			u.Close()
			return nil, err
		}
		u.conns[slot.Port] = conn
	}
	return u, nil
}

func (u *UDP) dial(port uint16) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(u.host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s:%d", u.host, port)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	klog.V(2).InfoS("UDP output ready", "destination", addr.String())
	return conn, nil
}

// Send writes line unchanged to the slot's destination.
func (u *UDP) Send(slot ipm.AddressSlot, line string) error {
	u.mu.Lock()
	conn, ok := u.conns[slot.Port]
	u.mu.Unlock()
	if !ok {
		return fmt.Errorf("no UDP destination for port %d", slot.Port)
	}
	if _, err := conn.Write([]byte(line)); err != nil {
		return errors.Wrapf(err, "send to port %d", slot.Port)
	}
	return nil
}

// Close releases every socket.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	var first error
	for port, conn := range u.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(u.conns, port)
	}
	return first
}

// Writer copies lines to w, prefixed with the bus address.
type Writer struct {
	w io.Writer
}

// NewWriter creates a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Send(slot ipm.AddressSlot, line string) error {
	_, err := fmt.Fprintf(s.w, "[%d] %s", slot.Address, line)
	return err
}

// Sender is implemented by every sink in this package.
type Sender interface {
	Send(slot ipm.AddressSlot, line string) error
}

// Multi sends to every sink and returns the first error.
type Multi []Sender

func (m Multi) Send(slot ipm.AddressSlot, line string) error {
	var first error
	for _, s := range m {
		if err := s.Send(slot, line); err != nil && first == nil {
			first = err
		}
	}
	return first
}
