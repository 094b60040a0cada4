// Package serialctl drives the GestIC reset and transfer lines through the
// modem control lines of a USB-serial adapter.
//
// Wiring, with the usual inverting adapter outputs:
//
//	DTR -> MCLR (reset)   asserted DTR holds the controller in reset
//	RTS -> TS (transfer)  asserted RTS claims the transfer line
//	CTS <- TS (transfer)  CTS is set while the controller pulls TS low
//
// The I2C traffic itself still goes over a separate bus.
package serialctl

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultPollInterval is how often CTS is sampled while waiting.
const DefaultPollInterval = 2 * time.Millisecond

// Port is the part of serial.Port used for line control.
type Port interface {
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	Close() error
}

// Lines implements the updater ReadySignal and ResetControl interfaces on a
// serial port.
type Lines struct {
	port Port
	poll time.Duration
}

// New wraps an open port. A poll interval of zero uses DefaultPollInterval.
func New(port Port, poll time.Duration) *Lines {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Lines{port: port, poll: poll}
}

// Open opens the named serial device with both outputs released.
// A poll interval of zero uses DefaultPollInterval.
func Open(name string, poll time.Duration) (*Lines, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate:          115200,
		InitialStatusBits: &serial.ModemOutputBits{DTR: false, RTS: false},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	return New(port, poll), nil
}

// Ports lists the serial devices present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	return ports, errors.Wrap(err, "list serial ports")
}

// WaitAsserted releases RTS and polls CTS until the controller signals a
// waiting message or ctx is done.
func (l *Lines) WaitAsserted(ctx context.Context) error {
	if err := l.Release(); err != nil {
		return err
	}

	t := time.NewTicker(l.poll)
	defer t.Stop()
	for {
		bits, err := l.port.GetModemStatusBits()
		if err != nil {
			return errors.Wrap(err, "read modem status")
		}
		if bits.CTS {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Claim asserts RTS.
func (l *Lines) Claim() error {
	return errors.Wrap(l.port.SetRTS(true), "claim transfer line")
}

// Release clears RTS.
func (l *Lines) Release() error {
	return errors.Wrap(l.port.SetRTS(false), "release transfer line")
}

// AssertReset asserts DTR.
func (l *Lines) AssertReset() error {
	return errors.Wrap(l.port.SetDTR(true), "assert reset")
}

// ReleaseReset clears DTR.
func (l *Lines) ReleaseReset() error {
	return errors.Wrap(l.port.SetDTR(false), "release reset")
}

// Close releases both lines and closes the port.
func (l *Lines) Close() error {
	_ = l.port.SetRTS(false)
	_ = l.port.SetDTR(false)
	return errors.Wrap(l.port.Close(), "close serial port")
}
