// Package periph connects the updater to a GestIC controller wired to a Linux
// board (for example a Raspberry Pi) through periph.io drivers.
//
//	bus, err := periph.OpenBus("")
//	ready, err := periph.OpenReadyPin("GPIO27", 0)
//	reset, err := periph.OpenResetPin("GPIO17")
//	prog := updater.New(updater.Device{Bus: bus, Ready: ready, Reset: reset})
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultPollInterval is how often ReadyPin samples the transfer line.
const DefaultPollInterval = time.Millisecond

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = errors.Wrap(err, "periph host init")
		}
	})
	return initErr
}

// Bus is an I2C transport.
type Bus struct {
	bus    i2c.Bus
	closer i2c.BusCloser
}

// NewBus wraps an already opened bus.
func NewBus(bus i2c.Bus) *Bus {
	return &Bus{bus: bus}
}

// OpenBus opens an I2C bus by name. An empty name selects the first bus.
func OpenBus(name string) (*Bus, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", name)
	}
	return &Bus{bus: bc, closer: bc}, nil
}

// Send writes p to addr in a single write transaction.
func (b *Bus) Send(addr uint16, p []byte) error {
	return errors.Wrapf(b.bus.Tx(addr, p, nil), "i2c write of %d bytes to 0x%02X", len(p), addr)
}

// Receive reads n bytes from addr in a single read transaction.
func (b *Bus) Receive(addr uint16, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := b.bus.Tx(addr, nil, r); err != nil {
		return nil, errors.Wrapf(err, "i2c read of %d bytes from 0x%02X", n, addr)
	}
	return r, nil
}

// Close releases the bus if it was opened by OpenBus.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return errors.Wrap(b.closer.Close(), "close i2c bus")
}

// SetSpeed changes the bus clock where the driver supports it.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return errors.Wrapf(b.bus.SetSpeed(f), "set i2c speed to %s", f)
}

func (b *Bus) String() string {
	return b.bus.String()
}

// ReadyPin is the GestIC transfer status line. The device pulls it low when
// a message is waiting; the host drives it low while reading the message.
type ReadyPin struct {
	pin  gpio.PinIO
	poll time.Duration
}

// NewReadyPin wraps pin. A poll interval of zero uses DefaultPollInterval.
func NewReadyPin(pin gpio.PinIO, poll time.Duration) *ReadyPin {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &ReadyPin{pin: pin, poll: poll}
}

// OpenReadyPin looks a GPIO up by name, for example "GPIO27". A poll
// interval of zero uses DefaultPollInterval.
func OpenReadyPin(name string, poll time.Duration) (*ReadyPin, error) {
	pin, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	return NewReadyPin(pin, poll), nil
}

// WaitAsserted releases the line to a pulled-up input and polls it until the
// device pulls it low or ctx is done.
func (r *ReadyPin) WaitAsserted(ctx context.Context) error {
	if err := r.Release(); err != nil {
		return err
	}
	if r.pin.Read() == gpio.Low {
		return nil
	}

	t := time.NewTicker(r.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if r.pin.Read() == gpio.Low {
				return nil
			}
		}
	}
}

// Claim drives the line low.
func (r *ReadyPin) Claim() error {
	return errors.Wrapf(r.pin.Out(gpio.Low), "claim %s", r.pin)
}

// Release returns the line to a pulled-up input.
func (r *ReadyPin) Release() error {
	return errors.Wrapf(r.pin.In(gpio.PullUp, gpio.NoEdge), "release %s", r.pin)
}

// ResetPin drives the active-low reset input of the controller.
type ResetPin struct {
	pin gpio.PinIO
}

// NewResetPin wraps pin.
func NewResetPin(pin gpio.PinIO) *ResetPin {
	return &ResetPin{pin: pin}
}

// OpenResetPin looks a GPIO up by name, for example "GPIO17".
func OpenResetPin(name string) (*ResetPin, error) {
	pin, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	return NewResetPin(pin), nil
}

// AssertReset drives reset low.
func (r *ResetPin) AssertReset() error {
	return errors.Wrapf(r.pin.Out(gpio.Low), "assert reset on %s", r.pin)
}

// ReleaseReset drives reset high.
func (r *ResetPin) ReleaseReset() error {
	return errors.Wrapf(r.pin.Out(gpio.High), "release reset on %s", r.pin)
}

func lookupPin(name string) (gpio.PinIO, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("gpio %q not found", name)
	}
	return pin, nil
}
