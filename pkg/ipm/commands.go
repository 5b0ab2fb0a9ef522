// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"regexp"
	"sort"
	"strconv"
)

var serialNoPattern = regexp.MustCompile(`^[0-9]{6}\n$`)

// CommandSpec describes one iPM command and the response it must produce.
type CommandSpec struct {
	Name string
	// Expected is the literal response. For data-bearing commands it is the
	// ASCII byte count of the binary block that follows.
	Expected string
	// Pattern replaces Expected for responses that vary per unit.
	Pattern *regexp.Regexp
	// ResponseLength overrides len(Expected) when Pattern is set.
	ResponseLength   int
	HasBinaryPayload bool
}

// ReadLength returns the number of response bytes to wait for.
func (c CommandSpec) ReadLength() int {
	if c.Pattern != nil {
		return c.ResponseLength
	}
	return len(c.Expected)
}

// Matches reports whether resp is a valid response to the command.
func (c CommandSpec) Matches(resp []byte) bool {
	if c.Pattern != nil {
		return c.Pattern.Match(resp)
	}
	return string(resp) == c.Expected
}

// PayloadLength parses the validated count response of a data-bearing command.
func (c CommandSpec) PayloadLength(resp []byte) (int, bool) {
	if !c.HasBinaryPayload {
		return 0, false
	}
	n := len(resp)
	if n > 0 && resp[n-1] == Terminator {
		n--
	}
	size, err := strconv.Atoi(string(resp[:n]))
	if err != nil || size <= 0 {
		return 0, false
	}
	return size, true
}

// Registry is the immutable table of commands understood by the iPM.
type Registry struct {
	commands map[string]CommandSpec
}

// RegistryOption customizes a Registry at construction.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	firmwareVersion string
}

// WithFirmwareVersion sets the literal expected from VER? (without newline).
func WithFirmwareVersion(version string) RegistryOption {
	return func(o *registryOptions) {
		if version != "" {
			o.firmwareVersion = version
		}
	}
}

// NewRegistry builds the fixed command table.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{firmwareVersion: DefaultFirmwareVersion}
	for _, opt := range opts {
		opt(&o)
	}

	specs := []CommandSpec{
		{Name: CmdOff, Expected: ResponseOK},
		{Name: CmdReset, Expected: ResponseOK},
		{Name: CmdSerialNo, Pattern: serialNoPattern, ResponseLength: SerialNoLength},
		{Name: CmdVersion, Expected: o.firmwareVersion + "\n"},
		{Name: CmdTest, Expected: ResponseOK},
		{Name: CmdBitResult, Expected: countResponse(BitResultSize), HasBinaryPayload: true},
		{Name: CmdAddress, Expected: ""},
		{Name: CmdMeasure, Expected: countResponse(MeasureSize), HasBinaryPayload: true},
		{Name: CmdStatus, Expected: countResponse(StatusSize), HasBinaryPayload: true},
		{Name: CmdRecord, Expected: countResponse(RecordSize), HasBinaryPayload: true},
	}

	r := &Registry{commands: make(map[string]CommandSpec, len(specs))}
	for _, s := range specs {
		r.commands[s.Name] = s
	}
	return r
}

func countResponse(size int) string {
	return strconv.Itoa(size) + "\n"
}

// Verify reports whether name is a known command.
func (r *Registry) Verify(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (CommandSpec, bool) {
	spec, ok := r.commands[name]
	return spec, ok
}

// Names returns every command name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
