// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

// Blocks captured from a unit in service.
var (
	BitResultBlock = []byte{0, 0, 254, 1, 255, 3, 25, 2, 24, 2, 88, 1, 0, 0, 0, 0, 39, 2, 249, 1, 249, 1, 253, 1}
	MeasureBlock   = []byte{88, 2, 0, 0, 5, 2, 139, 4, 139, 4, 0, 0, 4, 6, 252, 5, 0, 0, 28, 0, 28, 0, 9, 0, 201, 13, 200, 6, 7, 7, 27, 27, 1, 1}
	StatusBlock    = []byte{2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	RecordBlock    = []byte{0, 2, 99, 0, 0, 0, 139, 68, 105, 4, 0, 0, 0, 0, 0, 0, 0, 0, 209, 0, 155, 4, 209, 0, 155, 4, 0, 0, 0, 0, 69, 2, 88, 2, 0, 0, 94, 0, 0, 0, 85, 0, 0, 0, 21, 0, 26, 113, 26, 113, 1, 1, 4, 6, 90, 6, 4, 6, 83, 6, 0, 0, 24, 0, 19, 27, 124, 8}
)

// DefaultSerialNo is the SERNO? answer unless overridden.
const DefaultSerialNo = "203456"
