package updater

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout is matched by every TimeoutError.
var ErrTimeout = errors.New("timed out waiting for device")

// BusError indicates a failure of the bus or of one of the control lines.
// It always aborts the session.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus error during %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates that the device did not assert the ready line in time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: device not ready after %s", e.Op, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// StateError indicates an operation invoked in a state that does not allow it.
// Nothing is sent on the bus.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in session state %q", e.Op, e.State)
}

// VerificationError indicates that a verify run found blocks whose flash
// content differs from the image.
type VerificationError struct {
	Report *VerificationReport
}

func (e *VerificationError) Error() string {
	addrs := make([]string, 0, len(e.Report.Mismatches))
	for _, m := range e.Report.Mismatches {
		addrs = append(addrs, fmt.Sprintf("0x%04X", m.Address))
	}
	return fmt.Sprintf("firmware verification failed: %d of %d blocks differ (%s)",
		len(e.Report.Mismatches), e.Report.Checked, strings.Join(addrs, ", "))
}
