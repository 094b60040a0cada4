// Package updater drives GestIC firmware updates over I2C.
//
// The package is built around two types:
//
//   - Session is the begin / block / complete state machine for one update
//     or verification run. It frames each message, waits for the device's
//     ready line, reads the reply and decides whether the run can continue.
//   - Programmer sequences sessions for whole images: program, reset, verify,
//     and the loader-then-application update.
//
// Hardware is injected through three small interfaces (Transport, ReadySignal
// and ResetControl) so the same code runs against periph.io pins, USB-serial
// control lines or the in-memory device in package gestictest.
//
// # Basic Usage
//
//	img, err := image.Parse("gestic_app.img")
//	if err != nil {
//	    return err
//	}
//
//	prog := updater.New(updater.Device{Bus: bus, Ready: ready, Reset: reset})
//	if err := prog.Update(ctx, img); err != nil {
//	    return err
//	}
//
// # Error Handling
//
//	var pe *protocol.ProtocolError
//	var ve *updater.VerificationError
//	switch {
//	case errors.As(err, &pe):
//	    // device rejected a frame
//	case errors.As(err, &ve):
//	    // flash differs at ve.Report.FailedAddresses()
//	case errors.Is(err, updater.ErrTimeout):
//	    // ready line never asserted
//	}
//
// Nothing is retried. A session that fails is aborted and a new session must
// be started from Begin.
package updater
