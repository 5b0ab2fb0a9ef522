// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import "fmt"

// AnomalyType classifies a bad response from the iPM.
type AnomalyType int

const (
	AnomalyTimeout AnomalyType = iota
	AnomalyMismatch
	AnomalyPatternMismatch
	AnomalyLengthMismatch
	AnomalyInvalidCount
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyTimeout:
		return "timeout"
	case AnomalyMismatch:
		return "mismatch"
	case AnomalyPatternMismatch:
		return "pattern mismatch"
	case AnomalyLengthMismatch:
		return "length mismatch"
	case AnomalyInvalidCount:
		return "invalid count"
	}
	return fmt.Sprintf("anomaly(%d)", int(a))
}

// ValidationError describes a response that failed validation.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateResponse checks resp against the command's expected response.
// It returns nil when resp is acceptable.
func ValidateResponse(spec CommandSpec, resp []byte) *ValidationError {
	if spec.Matches(resp) {
		return nil
	}
	if spec.Pattern != nil {
		return &ValidationError{
			Type:    AnomalyPatternMismatch,
			Message: fmt.Sprintf("%s: response %q does not match %s", spec.Name, resp, spec.Pattern),
			Details: map[string]interface{}{"command": spec.Name, "received": string(resp), "pattern": spec.Pattern.String()},
		}
	}
	return &ValidationError{
		Type:    AnomalyMismatch,
		Message: fmt.Sprintf("%s: response %q, want %q", spec.Name, resp, spec.Expected),
		Details: map[string]interface{}{"command": spec.Name, "received": string(resp), "expected": spec.Expected},
	}
}

// NewTimeoutError reports that want bytes were expected but only got arrived.
func NewTimeoutError(name string, got, want int) *ValidationError {
	return &ValidationError{
		Type:    AnomalyTimeout,
		Message: fmt.Sprintf("%s: timed out after %d of %d bytes", name, got, want),
		Details: map[string]interface{}{"command": name, "received": got, "expected": want},
	}
}
