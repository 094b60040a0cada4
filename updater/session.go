package updater

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/looplab/fsm"

	"github.com/moffa90/go-gestic/protocol"
)

// Mode selects whether a session writes flash or only compares it.
// It is fixed when the session is created.
type Mode int

const (
	ModeProgram Mode = iota
	ModeVerify
)

func (m Mode) String() string {
	switch m {
	case ModeProgram:
		return "program"
	case ModeVerify:
		return "verify"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle          State = "idle"
	StateBegun         State = "begun"
	StateBlockInFlight State = "block_in_flight"
	StateCompleted     State = "completed"
	StateAborted       State = "aborted"
)

// Terminal reports whether no further operation is possible in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

const (
	eventBegin    = "begin"
	eventBlock    = "block"
	eventComplete = "complete"
	eventAbort    = "abort"
)

// Session drives one begin / block / complete exchange with the loader.
//
// A Session is owned by a single caller and is not safe for concurrent use.
// Any bus failure, timeout or fatal device status moves it to StateAborted,
// after which every operation returns a *StateError.
type Session struct {
	bus    Transport
	ready  ReadySignal
	mode   Mode
	id     uint32
	config Config

	machine *fsm.FSM
	blocks  int
	err     error
	idErr   error
	report  *VerificationReport
}

// NewSession creates a session in StateIdle. The session ID comes from
// WithSessionID when given and is drawn at random otherwise. If no random ID
// can be drawn, Begin fails and aborts the session.
func NewSession(bus Transport, ready ReadySignal, mode Mode, opts ...Option) *Session {
	if bus == nil {
		panic("bus cannot be nil")
	}
	if ready == nil {
		panic("ready signal cannot be nil")
	}
	return newSession(bus, ready, mode, newConfig(opts))
}

func newSession(bus Transport, ready ReadySignal, mode Mode, cfg Config) *Session {
	s := &Session{
		bus:    bus,
		ready:  ready,
		mode:   mode,
		id:     cfg.SessionID,
		config: cfg,
	}
	if !cfg.HasSessionID {
		id, err := newSessionID()
		if err != nil {
			s.idErr = fmt.Errorf("generate session id: %w", err)
			cfg.logError("no session id", "error", s.idErr)
		}
		s.id = id
	}
	if mode == ModeVerify {
		s.report = &VerificationReport{SessionID: s.id}
	}

	s.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventBegin, Src: []string{string(StateIdle)}, Dst: string(StateBegun)},
			{Name: eventBlock, Src: []string{string(StateBegun), string(StateBlockInFlight)}, Dst: string(StateBlockInFlight)},
			{Name: eventComplete, Src: []string{string(StateBegun), string(StateBlockInFlight)}, Dst: string(StateCompleted)},
			{Name: eventAbort, Src: []string{string(StateIdle), string(StateBegun), string(StateBlockInFlight)}, Dst: string(StateAborted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.config.logDebug("session state changed",
					"session", fmt.Sprintf("0x%08X", s.id),
					"event", e.Event,
					"from", e.Src,
					"to", e.Dst,
				)
			},
		},
	)
	return s
}

// randomSource supplies session IDs.
var randomSource io.Reader = rand.Reader

func newSessionID() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(randomSource, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ID returns the session ID carried by the begin and complete frames.
func (s *Session) ID() uint32 { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state.
func (s *Session) State() State { return State(s.machine.Current()) }

// Err returns the error that aborted the session, or nil.
func (s *Session) Err() error { return s.err }

// Report returns the verification results collected so far.
// It is nil for program sessions.
func (s *Session) Report() *VerificationReport { return s.report }

// Blocks returns the number of blocks the device has acknowledged.
func (s *Session) Blocks() int { return s.blocks }

// Begin opens the session on the device with the given 14-byte IV.
func (s *Session) Begin(ctx context.Context, iv [protocol.IVSize]byte) error {
	const op = "update begin"
	if err := s.check(op, eventBegin); err != nil {
		return err
	}
	if s.idErr != nil {
		return s.abort(s.idErr)
	}

	frame, err := protocol.BuildBeginCmd(s.id, iv, s.mode == ModeVerify)
	if err != nil {
		return err
	}

	status, err := s.exchange(ctx, op, frame, s.config.Timing.BeginSettle)
	if err != nil {
		return s.abort(err)
	}
	if status != protocol.StatusOK {
		return s.abort(&protocol.ProtocolError{Operation: op, Status: status})
	}

	s.config.logInfo("update session begun",
		"session", fmt.Sprintf("0x%08X", s.id),
		"mode", s.mode.String(),
	)
	return s.transition(eventBegin)
}

// SubmitBlock sends one block of firmware. Blocks go out in call order and
// are not inspected beyond the frame builder's range checks.
//
// In verify mode a ContentMismatch reply is recorded in the report and the
// session continues. Every other non-OK status aborts the session.
func (s *Session) SubmitBlock(ctx context.Context, address uint16, length uint8, data []byte) error {
	const op = "update block"
	if err := s.check(op, eventBlock); err != nil {
		return err
	}

	frame, err := protocol.BuildBlockCmd(address, length, data, s.mode == ModeVerify)
	if err != nil {
		return err
	}

	status, err := s.exchange(ctx, op, frame, s.config.Timing.FrameSettle)
	if err != nil {
		return s.abort(fmt.Errorf("block %d at 0x%04X: %w", s.blocks+1, address, err))
	}

	switch {
	case status == protocol.StatusOK:
	case status == protocol.StatusContentMismatch && s.mode == ModeVerify:
		s.report.Mismatches = append(s.report.Mismatches, Mismatch{
			Block:   s.blocks + 1,
			Address: address,
		})
		s.config.logError("block content mismatch",
			"block", s.blocks+1,
			"address", fmt.Sprintf("0x%04X", address),
		)
	default:
		return s.abort(fmt.Errorf("block %d at 0x%04X: %w", s.blocks+1, address,
			&protocol.ProtocolError{Operation: op, Status: status}))
	}

	s.blocks++
	if s.report != nil {
		s.report.Checked = s.blocks
	}
	return s.transition(eventBlock)
}

// Complete closes the session. The function byte follows the session mode.
// On success the device expects a reset before it runs the new image.
func (s *Session) Complete(ctx context.Context, version string) error {
	const op = "update complete"
	if err := s.check(op, eventComplete); err != nil {
		return err
	}

	fn := protocol.FunctionProgram
	if s.mode == ModeVerify {
		fn = protocol.FunctionVerify
	}
	frame, err := protocol.BuildCompleteCmd(s.id, fn, version)
	if err != nil {
		return err
	}

	status, err := s.exchange(ctx, op, frame, s.config.Timing.FrameSettle)
	if err != nil {
		return s.abort(err)
	}
	if status != protocol.StatusOK {
		return s.abort(&protocol.ProtocolError{Operation: op, Status: status})
	}

	s.config.logInfo("update session completed",
		"session", fmt.Sprintf("0x%08X", s.id),
		"blocks", s.blocks,
	)
	return s.transition(eventComplete)
}

// Abort moves a live session to StateAborted without touching the bus.
func (s *Session) Abort(reason error) error {
	if err := s.check("abort", eventAbort); err != nil {
		return err
	}
	if reason == nil {
		reason = errors.New("aborted by caller")
	}
	s.abort(reason)
	return nil
}

func (s *Session) check(op, event string) error {
	if !s.machine.Can(event) {
		return &StateError{Op: op, State: s.State()}
	}
	return nil
}

func (s *Session) transition(event string) error {
	err := s.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

// abort records err, moves the session to StateAborted and returns err.
func (s *Session) abort(err error) error {
	s.err = err
	s.config.logError("update session aborted",
		"session", fmt.Sprintf("0x%08X", s.id),
		"state", string(s.State()),
		"error", err,
	)
	if terr := s.transition(eventAbort); terr != nil {
		s.config.logError("abort transition failed", "error", terr)
	}
	return err
}

// exchange sends one frame and reads the device's reply status.
func (s *Session) exchange(ctx context.Context, op string, frame []byte, settle time.Duration) (protocol.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.config.logDebug("sending frame",
		"op", op,
		"bytes", len(frame),
		"crc", fmt.Sprintf("0x%08X", binary.LittleEndian.Uint32(frame[protocol.OffsetCRC:protocol.HeaderSize])),
	)
	if err := s.bus.Send(s.config.Address, frame); err != nil {
		return 0, &BusError{Op: op, Err: err}
	}

	if err := Sleep(ctx, settle); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	reply, err := readReply(ctx, s.bus, s.ready, s.config.Address, s.config.ReadyTimeout, op)
	if err != nil {
		return 0, err
	}

	status, err := protocol.DecodeStatus(reply)
	if err != nil {
		return 0, &BusError{Op: op, Err: err}
	}
	s.config.logDebug("received reply", "op", op, "status", status.String())
	return status, nil
}

// readReply waits for the device to assert the ready line, then reads one
// reply while holding the line. A timeout of zero waits until ctx is done.
func readReply(ctx context.Context, bus Transport, ready ReadySignal, addr uint16, timeout time.Duration, op string) (reply []byte, err error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if werr := ready.WaitAsserted(waitCtx); werr != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case waitCtx.Err() != nil:
			return nil, &TimeoutError{Op: op, After: timeout}
		default:
			return nil, &BusError{Op: op, Err: werr}
		}
	}

	if cerr := ready.Claim(); cerr != nil {
		return nil, &BusError{Op: op, Err: cerr}
	}
	defer func() {
		if rerr := ready.Release(); rerr != nil && err == nil {
			reply, err = nil, &BusError{Op: op, Err: rerr}
		}
	}()

	reply, err = bus.Receive(addr, protocol.ResponseSize)
	if err != nil {
		return nil, &BusError{Op: op, Err: err}
	}
	return reply, nil
}
