package updater

import (
	"context"
	"time"
)

// Default delays observed with the GestIC library loader.
const (
	// DefaultResetPulse is how long reset is held asserted
	DefaultResetPulse = 10 * time.Millisecond

	// DefaultReboot is the wait after releasing reset before talking to the device
	DefaultReboot = 300 * time.Millisecond

	// DefaultBeginSettle is the device processing time after a begin frame
	DefaultBeginSettle = 40 * time.Millisecond

	// DefaultFrameSettle is the device processing time after block and complete frames
	DefaultFrameSettle = 60 * time.Millisecond

	// DefaultCompleteToReset is the wait between a completed session and the latching reset
	DefaultCompleteToReset = 500 * time.Millisecond

	// DefaultLoaderRestart is the wait after a loader update before the new
	// loader accepts the application image
	DefaultLoaderRestart = 21 * time.Second
)

// Timing holds the fixed delays of an update run. A zero field means no delay.
type Timing struct {
	ResetPulse      time.Duration
	Reboot          time.Duration
	BeginSettle     time.Duration
	FrameSettle     time.Duration
	CompleteToReset time.Duration
	LoaderRestart   time.Duration
}

// DefaultTiming returns the delays used by the reference updater.
func DefaultTiming() Timing {
	return Timing{
		ResetPulse:      DefaultResetPulse,
		Reboot:          DefaultReboot,
		BeginSettle:     DefaultBeginSettle,
		FrameSettle:     DefaultFrameSettle,
		CompleteToReset: DefaultCompleteToReset,
		LoaderRestart:   DefaultLoaderRestart,
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
