// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

var (
	// ErrInvalidCommand is returned for names missing from the registry. No
	// bytes are written.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrTimeout is returned when the iPM does not answer within the read wait.
	ErrTimeout = errors.New("response timeout")
	// ErrMismatch is returned when the response does not match the registry.
	ErrMismatch = errors.New("response mismatch")
	// ErrBadDataLimit is returned once the bad-data count reaches MaxBadData.
	ErrBadDataLimit = errors.New("bad data limit reached")
	// ErrNoAddresses is returned by Init when every address was evicted.
	ErrNoAddresses = errors.New("no responding addresses")
)

// TransactionError is a failed exchange with the iPM that counted as bad data.
type TransactionError struct {
	Kind    error
	Command string
	Anomaly *ipm.ValidationError
	// BadData is the cumulative bad-data count after this failure.
	BadData int
}

func (e *TransactionError) Error() string {
	msg := fmt.Sprintf("%s: %v (bad data %d/%d)", e.Command, e.Kind, e.BadData, MaxBadData)
	if e.Anomaly != nil {
		msg += ": " + e.Anomaly.Message
	}
	return msg
}

// Unwrap exposes the failure kind, the anomaly, and ErrBadDataLimit once
// the limit has been reached.
func (e *TransactionError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Anomaly != nil {
		errs = append(errs, e.Anomaly)
	}
	if e.BadData >= MaxBadData {
		errs = append(errs, ErrBadDataLimit)
	}
	return errs
}

// IsFatal reports whether err ends the polling run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBadDataLimit)
}
