package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-gestic/image"
	"github.com/moffa90/go-gestic/protocol"
)

// Programmer runs complete firmware updates on a GestIC controller.
// It sequences sessions, delays and resets around the Session state machine.
//
// A Programmer drives one device and must not be used from several
// goroutines at once.
type Programmer struct {
	dev    Device
	config Config
}

// New creates a new Programmer for the given device and options.
// The device must provide a bus and a ready line; Reset is optional.
//
// Example:
//
//	prog := updater.New(updater.Device{Bus: bus, Ready: ready, Reset: reset},
//	    updater.WithProgressCallback(progressFunc),
//	    updater.WithReadyTimeout(2*time.Second),
//	)
func New(dev Device, opts ...Option) *Programmer {
	if dev.Bus == nil {
		panic("device bus cannot be nil")
	}
	if dev.Ready == nil {
		panic("device ready signal cannot be nil")
	}

	return &Programmer{
		dev:    dev,
		config: newConfig(opts),
	}
}

// NewSession starts a session on the programmer's device with its options.
func (p *Programmer) NewSession(mode Mode) *Session {
	return newSession(p.dev.Bus, p.dev.Ready, mode, p.config)
}

// Reset pulses the reset line, waits for the device to reboot and, unless
// disabled with WithBootMessage, consumes the status message the device
// posts once it is up. Without a ResetControl it does nothing.
func (p *Programmer) Reset(ctx context.Context) error {
	if p.dev.Reset == nil {
		p.config.logDebug("no reset control, skipping reset")
		return nil
	}

	p.config.logDebug("resetting device")
	if err := p.dev.Reset.AssertReset(); err != nil {
		return &BusError{Op: "assert reset", Err: err}
	}
	if err := Sleep(ctx, p.config.Timing.ResetPulse); err != nil {
		// Leave the device running rather than held in reset.
		_ = p.dev.Reset.ReleaseReset()
		return fmt.Errorf("reset: %w", err)
	}
	if err := p.dev.Reset.ReleaseReset(); err != nil {
		return &BusError{Op: "release reset", Err: err}
	}
	if err := Sleep(ctx, p.config.Timing.Reboot); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if !p.config.BootMessage {
		return nil
	}
	return p.drainBootMessage(ctx)
}

// drainBootMessage reads the unsolicited status the device posts after boot.
func (p *Programmer) drainBootMessage(ctx context.Context) error {
	reply, err := readReply(ctx, p.dev.Bus, p.dev.Ready, p.config.Address, p.config.ReadyTimeout, "boot message")
	if err != nil {
		return err
	}
	status, err := protocol.DecodeStatus(reply)
	if err != nil {
		return &BusError{Op: "boot message", Err: err}
	}
	p.config.logInfo("device booted", "status", status.String())
	return nil
}

// Program writes img to flash in one program session:
//  1. Begin the session with the image IV
//  2. Send every block in image order
//  3. Complete the session with the image version
//  4. Reset the device so the new image is latched
//
// The operation can be cancelled via context; a cancelled session is
// aborted and nothing further is sent.
//
// Example:
//
//	img, _ := image.Parse("gestic_app.img")
//	err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *image.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if err := img.Validate(); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}

	startTime := time.Now()
	total := len(img.Blocks)

	p.config.reportProgress(Progress{
		Phase:       PhaseBeginning,
		Percentage:  0,
		TotalBlocks: total,
	})

	s := p.NewSession(ModeProgram)
	if err := s.Begin(ctx, img.IV); err != nil {
		return err
	}

	bytesWritten := 0
	for i, block := range img.Blocks {
		if err := s.SubmitBlock(ctx, block.Address, block.Length, block.Data); err != nil {
			return err
		}
		bytesWritten += int(block.Length)

		// Report progress (2% to 90%)
		percentage := 2 + (float64(i+1)/float64(total))*88
		p.config.reportProgress(Progress{
			Phase:        PhaseProgramming,
			CurrentBlock: i + 1,
			TotalBlocks:  total,
			Percentage:   percentage,
			BytesWritten: bytesWritten,
			ElapsedTime:  time.Since(startTime),
		})
	}

	p.config.reportProgress(Progress{
		Phase:        PhaseCompleting,
		CurrentBlock: total,
		TotalBlocks:  total,
		Percentage:   92,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	if err := s.Complete(ctx, img.Version); err != nil {
		return err
	}

	if err := p.resetAfterSession(ctx, total, bytesWritten, startTime); err != nil {
		return err
	}

	p.config.reportProgress(Progress{
		Phase:        PhaseComplete,
		CurrentBlock: total,
		TotalBlocks:  total,
		Percentage:   100,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	p.config.logInfo("programming complete",
		"version", img.Version,
		"blocks", total,
		"bytes", bytesWritten,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// Verify compares flash against img in one verify session and returns the
// per-block results. Mismatching blocks do not stop the run; when any are
// found the report is returned together with a *VerificationError.
func (p *Programmer) Verify(ctx context.Context, img *image.Image) (*VerificationReport, error) {
	if img == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}

	startTime := time.Now()
	total := len(img.Blocks)

	p.config.reportProgress(Progress{
		Phase:       PhaseBeginning,
		Percentage:  0,
		TotalBlocks: total,
	})

	s := p.NewSession(ModeVerify)
	if err := s.Begin(ctx, img.IV); err != nil {
		return nil, err
	}

	for i, block := range img.Blocks {
		if err := s.SubmitBlock(ctx, block.Address, block.Length, block.Data); err != nil {
			return s.Report(), err
		}

		percentage := 2 + (float64(i+1)/float64(total))*88
		p.config.reportProgress(Progress{
			Phase:        PhaseVerifying,
			CurrentBlock: i + 1,
			TotalBlocks:  total,
			Percentage:   percentage,
			Mismatches:   len(s.Report().Mismatches),
			ElapsedTime:  time.Since(startTime),
		})
	}

	report := s.Report()

	p.config.reportProgress(Progress{
		Phase:        PhaseCompleting,
		CurrentBlock: total,
		TotalBlocks:  total,
		Percentage:   92,
		Mismatches:   len(report.Mismatches),
		ElapsedTime:  time.Since(startTime),
	})

	if err := s.Complete(ctx, img.Version); err != nil {
		return report, err
	}

	if err := p.resetAfterSession(ctx, total, 0, startTime); err != nil {
		return report, err
	}

	p.config.reportProgress(Progress{
		Phase:        PhaseComplete,
		CurrentBlock: total,
		TotalBlocks:  total,
		Percentage:   100,
		Mismatches:   len(report.Mismatches),
		ElapsedTime:  time.Since(startTime),
	})

	if !report.Passed() {
		err := &VerificationError{Report: report}
		p.config.logError("verification failed", "error", err)
		return report, err
	}

	p.config.logInfo("verification passed",
		"version", img.Version,
		"blocks", report.Checked,
		"elapsed", time.Since(startTime).String(),
	)
	return report, nil
}

// Update programs img and, unless disabled with WithVerifyAfterProgram,
// verifies it afterwards.
func (p *Programmer) Update(ctx context.Context, img *image.Image) error {
	if err := p.Program(ctx, img); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	if !p.config.VerifyAfterProgram {
		return nil
	}
	if _, err := p.Verify(ctx, img); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}

// UpdateAll resets the device, programs a new library loader, waits for it to
// restart and then updates the application image. Either image may be nil to
// skip it.
func (p *Programmer) UpdateAll(ctx context.Context, loader, app *image.Image) error {
	p.config.reportProgress(Progress{Phase: PhaseResetting})
	if err := p.Reset(ctx); err != nil {
		return fmt.Errorf("initial reset: %w", err)
	}

	if loader != nil {
		p.config.logInfo("updating library loader", "version", loader.Version)
		if err := p.Program(ctx, loader); err != nil {
			return fmt.Errorf("loader: %w", err)
		}
		if app != nil {
			p.config.logInfo("waiting for loader restart", "wait", p.config.Timing.LoaderRestart.String())
			if err := Sleep(ctx, p.config.Timing.LoaderRestart); err != nil {
				return fmt.Errorf("loader restart: %w", err)
			}
		}
	}

	if app != nil {
		p.config.logInfo("updating application", "version", app.Version)
		if err := p.Update(ctx, app); err != nil {
			return fmt.Errorf("application: %w", err)
		}
	}
	return nil
}

func (p *Programmer) resetAfterSession(ctx context.Context, total, bytesWritten int, startTime time.Time) error {
	p.config.reportProgress(Progress{
		Phase:        PhaseResetting,
		CurrentBlock: total,
		TotalBlocks:  total,
		Percentage:   96,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	if err := Sleep(ctx, p.config.Timing.CompleteToReset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := p.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
