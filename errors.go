// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spiflash

import (
	"fmt"

	"github.com/pkg/errors"
)

// Channel errors.
var (
	ErrSerial        = errors.New("error interacting with serial port")
	ErrDeviceTimeout = errors.New("timed out waiting for device")
	ErrClosed        = errors.New("serial device is closed")
)

// SerialError is a failure of the underlying port. It matches both
// ErrSerial and the port's own error.
type SerialError struct {
	Op  string
	Err error
}

func (e *SerialError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrSerial, e.Op, e.Err)
}

func (e *SerialError) Unwrap() []error { return []error{ErrSerial, e.Err} }

// ErrPrecondition is returned before any byte is sent when the arguments
// of an operation are invalid.
var ErrPrecondition = errors.New("invalid arguments")

var ErrNotImplemented = errors.New("not implemented")

// Protocol errors. The channel is closed before any of these is returned.
var (
	ErrVersionMismatch = errors.New("firmware version mismatch")
	ErrUnsupportedChip = errors.New("unsupported chip")
)

// Command failure classes. A *CommandError unwraps to exactly one of them.
var (
	ErrFailure              = errors.New("unexpected failure")
	ErrCommandNotRecognized = errors.New("command not recognized")
	ErrAddressTimeout       = errors.New("bridge timed out receiving the address bytes")
	ErrWriteProtected       = errors.New("NOR chip has write protection enabled")
	ErrChipEraseFailed      = errors.New("chip erase failed")
	ErrPageReadTimeout      = errors.New("bridge timed out receiving the block data")
	ErrPageWriteFailed      = errors.New("page failed to write")
	ErrUnknownStatus        = errors.New("unknown response code")
)

var status2Err = map[Status]error{
	StatusFailure:          ErrFailure,
	StatusCmdNotRecognized: ErrCommandNotRecognized,
	StatusAddrReadTimeout:  ErrAddressTimeout,
	StatusWriteProtected:   ErrWriteProtected,
	StatusChipEraseFailure: ErrChipEraseFailed,
	StatusPageReadTimeout:  ErrPageReadTimeout,
	StatusPageWriteFailure: ErrPageWriteFailed,
}

// ErrVerify is the class of *VerifyError.
var ErrVerify = errors.New("block verification failed")

// CommandError is a non-success response code.
type CommandError struct {
	Command CommandType
	Status  Status
	// Opcode is the command echoed back with StatusCmdNotRecognized.
	Opcode byte
}

func (e *CommandError) Error() string {
	switch e.Status {
	case StatusCmdNotRecognized:
		return fmt.Sprintf("%v: %v: %d", e.Command, e.Unwrap(), e.Opcode)
	case StatusAddrReadTimeout:
		return fmt.Sprintf("%v: %v (did you send the correct number of bytes?)", e.Command, e.Unwrap())
	}
	if !e.Status.Known() {
		return fmt.Sprintf("%v: received unknown error code: %d", e.Command, byte(e.Status))
	}
	return fmt.Sprintf("%v: %v", e.Command, e.Unwrap())
}

// Unwrap returns the failure class of the response code.
func (e *CommandError) Unwrap() error {
	if err, ok := status2Err[e.Status]; ok {
		return err
	}
	return ErrUnknownStatus
}

// VersionMismatchError is returned when the bridge runs another firmware
// version than the driver.
type VersionMismatchError struct {
	Expected Version
	Actual   Version
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("ping failed (expected %v, got %v)", e.Expected, e.Actual)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// UnsupportedChipError is returned when the IDs are not in SupportedChips.
type UnsupportedChipError struct {
	ManufacturerID byte
	DeviceID       byte
}

func (e *UnsupportedChipError) Error() string {
	if name, ok := manufacturers[e.ManufacturerID]; ok {
		return fmt.Sprintf("unsupported chip: manufacturer %s (0x%02x), unknown device (0x%02x)",
			name, e.ManufacturerID, e.DeviceID)
	}
	return fmt.Sprintf("unsupported chip: unknown manufacturer (0x%02x), device (0x%02x)",
		e.ManufacturerID, e.DeviceID)
}

func (e *UnsupportedChipError) Unwrap() error { return ErrUnsupportedChip }

// VerifyError is a read-back mismatch after programming a block.
type VerifyError struct {
	Block int
	// Mismatches is the number of differing bytes; First and Last are
	// the offsets of the first and last of them within the block.
	Mismatches  int
	First, Last int
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("block verification failed (block=%d): %d mismatched bytes, first at 0x%x, last at 0x%x",
		e.Block, e.Mismatches, e.First, e.Last)
}

func (e *VerifyError) Unwrap() error { return ErrVerify }
