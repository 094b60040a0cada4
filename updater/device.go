package updater

import "context"

// Transport moves raw bytes to and from the controller over the two-wire bus.
// Implementations must be usable from a single goroutine only.
type Transport interface {
	// Send writes p to the device at addr in one bus transaction.
	Send(addr uint16, p []byte) error

	// Receive reads exactly n bytes from the device at addr.
	Receive(addr uint16, n int) ([]byte, error)
}

// ReadySignal is the out-of-band transfer line the device pulls low when a
// reply is waiting. Every reply is read inside one
// WaitAsserted / Claim / Release bracket.
type ReadySignal interface {
	// WaitAsserted configures the line as a pulled-up input and blocks until
	// the device asserts it or ctx is done.
	WaitAsserted(ctx context.Context) error

	// Claim drives the line from the host side while the reply is read,
	// acknowledging that the device's message is being consumed.
	Claim() error

	// Release returns the line to a pulled-up input.
	Release() error
}

// ResetControl drives the controller's reset input.
type ResetControl interface {
	AssertReset() error
	ReleaseReset() error
}

// Device groups the collaborators wired to one GestIC controller.
// Reset may be nil, in which case reset steps are skipped.
type Device struct {
	Bus   Transport
	Ready ReadySignal
	Reset ResetControl
}
