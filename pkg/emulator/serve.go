// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Port is the instrument side of a serial link.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

const servePoll = 100 * time.Millisecond

// Serve answers commands arriving on port until ctx is done.
func (d *Device) Serve(ctx context.Context, port Port) error {
	if err := port.SetReadTimeout(servePoll); err != nil {
		return errors.Wrap(err, "set read timeout")
	}

	var line []byte
	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			return errors.Wrap(err, "read")
		}
		for _, b := range buf[:n] {
			line = append(line, b)
			if b != '\n' {
				continue
			}
			resp := d.Respond(string(line))
			klog.V(2).InfoS("Emulator command", "command", string(line[:len(line)-1]), "responseBytes", len(resp))
			line = line[:0]
			if len(resp) == 0 {
				continue
			}
			if _, err := port.Write(resp); err != nil {
				return errors.Wrap(err, "write")
			}
		}
	}
}
