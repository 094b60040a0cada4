package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError represents a non-OK status returned by the device.
type ProtocolError struct {
	// Operation is the message that failed
	Operation string

	// Status is the status reported by the device
	Status Status
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, e.Status, byte(e.Status))
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// StatusOf returns the device status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Status, true
	}
	return 0, false
}

// ChecksumError indicates that a frame's CRC field does not match its content.
type ChecksumError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("CRC mismatch: frame carries 0x%08X, content computes to 0x%08X", e.Expected, e.Actual)
}
