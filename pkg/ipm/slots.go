// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ipm

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressSlot is one polled bus address and where its output goes.
type AddressSlot struct {
	Address   uint8
	QueryMask uint8
	Port      uint16
}

// ParseAddressSlot parses an "addr,mask,port" triple.
func ParseAddressSlot(s string) (AddressSlot, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return AddressSlot{}, fmt.Errorf("address %q: want addr,mask,port", s)
	}

	addr, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
	if err != nil || addr > MaxAddress {
		return AddressSlot{}, fmt.Errorf("address %q: bus address must be 0-%d", s, MaxAddress)
	}
	mask, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil || mask > MaxQueryMask {
		return AddressSlot{}, fmt.Errorf("address %q: query mask must be 0-%d", s, MaxQueryMask)
	}
	port, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 16)
	if err != nil || port == 0 {
		return AddressSlot{}, fmt.Errorf("address %q: port must be 1-65535", s)
	}

	return AddressSlot{Address: uint8(addr), QueryMask: uint8(mask), Port: uint16(port)}, nil
}

// Queries reports whether the slot polls the query selected by bit.
func (a AddressSlot) Queries(bit uint8) bool {
	return a.QueryMask&bit != 0
}

// String returns the slot in its "addr,mask,port" form.
func (a AddressSlot) String() string {
	return fmt.Sprintf("%d,%d,%d", a.Address, a.QueryMask, a.Port)
}

// SlotList is an ordered list of at most MaxAddresses slots.
type SlotList struct {
	slots [MaxAddresses]AddressSlot
	n     int
}

// NewSlotList builds a list from slots in order.
func NewSlotList(slots ...AddressSlot) (*SlotList, error) {
	l := &SlotList{}
	for _, s := range slots {
		if err := l.Add(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends a slot.
func (l *SlotList) Add(s AddressSlot) error {
	if l.n == MaxAddresses {
		return fmt.Errorf("at most %d addresses may be configured", MaxAddresses)
	}
	l.slots[l.n] = s
	l.n++
	return nil
}

// Remove deletes slot i and shifts later slots left, so the slot that
// followed i now sits at i.
func (l *SlotList) Remove(i int) {
	if i < 0 || i >= l.n {
		return
	}
	copy(l.slots[i:l.n], l.slots[i+1:l.n])
	l.n--
	l.slots[l.n] = AddressSlot{}
}

// Len returns the number of slots.
func (l *SlotList) Len() int {
	return l.n
}

// At returns slot i.
func (l *SlotList) At(i int) AddressSlot {
	return l.slots[i]
}

// Slots returns a copy of the live slots.
func (l *SlotList) Slots() []AddressSlot {
	out := make([]AddressSlot, l.n)
	copy(out, l.slots[:l.n])
	return out
}
