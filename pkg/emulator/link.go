// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"bytes"
	"sync"
	"time"
)

// Link is an in-memory serial channel wired to a Device. Reads never block:
// an empty receive buffer behaves like an elapsed read timeout.
type Link struct {
	dev *Device

	mu       sync.Mutex
	line     []byte
	rx       bytes.Buffer
	written  bytes.Buffer
	timeout  time.Duration
	flushes  int
	maxChunk int
}

// NewLink attaches a link to dev.
func NewLink(dev *Device) *Link {
	return &Link{dev: dev}
}

// Device returns the emulated iPM behind the link.
func (l *Link) Device() *Device {
	return l.dev
}

// SetMaxChunk limits how many bytes a single Read returns, to mimic a slow
// line. Zero means no limit.
func (l *Link) SetMaxChunk(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxChunk = n
}

func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written.Write(p)
	for _, b := range p {
		l.line = append(l.line, b)
		if b == '\n' {
			l.rx.Write(l.dev.Respond(string(l.line)))
			l.line = l.line[:0]
		}
	}
	return len(p), nil
}

func (l *Link) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rx.Len() == 0 {
		return 0, nil
	}
	if l.maxChunk > 0 && len(p) > l.maxChunk {
		p = p[:l.maxChunk]
	}
	return l.rx.Read(p)
}

// SetReadTimeout records the timeout; reads never wait.
func (l *Link) SetReadTimeout(t time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeout = t
	return nil
}

// ReadTimeout returns the last timeout set.
func (l *Link) ReadTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeout
}

func (l *Link) Drain() error {
	return nil
}

// ResetInputBuffer discards unread response bytes.
func (l *Link) ResetInputBuffer() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rx.Reset()
	l.flushes++
	return nil
}

// Flushes returns the number of ResetInputBuffer calls.
func (l *Link) Flushes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushes
}

// Written returns every byte written to the link.
func (l *Link) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.written.Bytes()...)
}

// Inject queues bytes as if the iPM had sent them unprompted.
func (l *Link) Inject(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rx.Write(b)
}

func (l *Link) Close() error {
	return nil
}
