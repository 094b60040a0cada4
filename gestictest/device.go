// Package gestictest provides an in-memory GestIC controller for tests and
// dry runs.
//
// Device behaves like the library loader on the other end of the bus: it
// checks every frame (length, CRC, session ID, address and function), keeps
// programmed blocks in a flash map and answers verify frames by comparing
// against it. Faults can be injected per message and every frame and line
// transition is recorded for inspection.
package gestictest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/moffa90/go-gestic/protocol"
)

// Line events recorded by Device.
const (
	LineWait         = "wait"
	LineClaim        = "claim"
	LineRelease      = "release"
	LineResetAssert  = "reset-assert"
	LineResetRelease = "reset-release"
)

// ErrNoReply is returned by Receive when the device has nothing to send.
var ErrNoReply = errors.New("gestictest: no reply pending")

// Device is a simulated GestIC controller. It implements the Transport,
// ReadySignal and ResetControl interfaces of package updater.
//
// The zero value is not usable; create devices with NewDevice.
type Device struct {
	mu sync.Mutex

	address     uint16
	bootMessage bool

	flash   map[uint16][]byte
	version string

	open      bool
	sessionID uint32
	function  protocol.Function
	blockNum  int

	pending []byte
	claimed bool
	inReset bool

	frames [][]byte
	lines  []string

	beginStatus    *protocol.Status
	completeStatus *protocol.Status
	blockStatus    map[int]protocol.Status
	sendErrs       map[int]error
	receiveErr     error
	releaseErr     error
	unresponsive   bool
}

// NewDevice returns a device answering at protocol.DefaultAddress with empty
// flash. It posts a boot message after every reset.
func NewDevice() *Device {
	return &Device{
		address:     protocol.DefaultAddress,
		bootMessage: true,
		flash:       make(map[uint16][]byte),
		blockStatus: make(map[int]protocol.Status),
		sendErrs:    make(map[int]error),
	}
}

// SetAddress changes the bus address the device answers at.
func (d *Device) SetAddress(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = addr
}

// SetBootMessage controls whether a status message is posted after reset.
func (d *Device) SetBootMessage(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bootMessage = enabled
}

// FailBegin makes the next begin frames answer with status.
func (d *Device) FailBegin(status protocol.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beginStatus = &status
}

// FailComplete makes complete frames answer with status.
func (d *Device) FailComplete(status protocol.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeStatus = &status
}

// FailBlock makes the n-th block of every session (1-based) answer with status.
func (d *Device) FailBlock(n int, status protocol.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockStatus[n] = status
}

// FailSend makes the n-th Send call (1-based, counted over the device
// lifetime) return err. The frame is still recorded.
func (d *Device) FailSend(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendErrs[n] = err
}

// FailReceive makes every Receive call return err.
func (d *Device) FailReceive(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiveErr = err
}

// FailRelease makes every Release call return err.
func (d *Device) FailRelease(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseErr = err
}

// SetUnresponsive stops the device from ever asserting the ready line.
func (d *Device) SetUnresponsive(unresponsive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unresponsive = unresponsive
}

// SetFlash overwrites the stored content of the block at addr.
func (d *Device) SetFlash(addr uint16, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flash[addr] = append([]byte(nil), data...)
}

// Flash returns a copy of the stored content of the block at addr.
func (d *Device) Flash(addr uint16) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.flash[addr]
	return append([]byte(nil), data...), ok
}

// Version returns the version string of the last completed program session.
func (d *Device) Version() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Frames returns copies of every frame written to the device.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.frames))
	for i, f := range d.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Commands decodes every recorded frame. Frames that fail to decode are
// returned as the decoding error.
func (d *Device) Commands() []interface{} {
	frames := d.Frames()
	out := make([]interface{}, len(frames))
	for i, f := range frames {
		cmd, err := protocol.DecodeCommand(f)
		if err != nil {
			out[i] = err
			continue
		}
		out[i] = cmd
	}
	return out
}

// Lines returns the recorded ready and reset line events in order.
func (d *Device) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

// Send implements updater.Transport.
func (d *Device) Send(addr uint16, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if addr != d.address {
		return fmt.Errorf("gestictest: no device at address 0x%02X", addr)
	}
	d.frames = append(d.frames, append([]byte(nil), p...))
	if err, ok := d.sendErrs[len(d.frames)]; ok {
		return err
	}
	if d.inReset {
		return fmt.Errorf("gestictest: device held in reset")
	}

	d.post(d.handle(p))
	return nil
}

// Receive implements updater.Transport.
func (d *Device) Receive(addr uint16, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if addr != d.address {
		return nil, fmt.Errorf("gestictest: no device at address 0x%02X", addr)
	}
	if d.receiveErr != nil {
		return nil, d.receiveErr
	}
	if !d.claimed {
		return nil, fmt.Errorf("gestictest: read without claiming the transfer line")
	}
	if d.pending == nil {
		return nil, ErrNoReply
	}
	if n != len(d.pending) {
		return nil, fmt.Errorf("gestictest: read of %d bytes, reply is %d", n, len(d.pending))
	}

	reply := d.pending
	d.pending = nil
	return reply, nil
}

// WaitAsserted implements updater.ReadySignal. It returns at once when a
// reply is pending and blocks until ctx is done otherwise.
func (d *Device) WaitAsserted(ctx context.Context) error {
	d.mu.Lock()
	d.lines = append(d.lines, LineWait)
	ready := d.pending != nil && !d.unresponsive
	d.mu.Unlock()

	if ready {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// Claim implements updater.ReadySignal.
func (d *Device) Claim() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, LineClaim)
	d.claimed = true
	return nil
}

// Release implements updater.ReadySignal.
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, LineRelease)
	d.claimed = false
	return d.releaseErr
}

// AssertReset implements updater.ResetControl. Any open session is dropped.
func (d *Device) AssertReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, LineResetAssert)
	d.inReset = true
	d.open = false
	d.pending = nil
	return nil
}

// ReleaseReset implements updater.ResetControl.
func (d *Device) ReleaseReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, LineResetRelease)
	d.inReset = false
	if d.bootMessage {
		d.post(protocol.StatusOK)
	}
	return nil
}

// post queues a reply carrying status. Caller holds mu.
func (d *Device) post(status protocol.Status) {
	reply := make([]byte, protocol.ResponseSize)
	reply[protocol.StatusOffset] = byte(status)
	d.pending = reply
}

// handle runs one frame through the loader logic. Caller holds mu.
func (d *Device) handle(frame []byte) protocol.Status {
	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		var ce *protocol.ChecksumError
		switch {
		case errors.As(err, &ce):
			return protocol.StatusInvalidCRC
		case len(frame) > protocol.OffsetMessageID && !knownMessage(frame[protocol.OffsetMessageID]):
			return protocol.StatusUnknownCommand
		default:
			return protocol.StatusInvalidLength
		}
	}

	switch c := cmd.(type) {
	case *protocol.BeginCmd:
		return d.begin(c)
	case *protocol.BlockCmd:
		return d.block(c)
	case *protocol.CompleteCmd:
		return d.complete(c)
	}
	return protocol.StatusUnknownCommand
}

func (d *Device) begin(c *protocol.BeginCmd) protocol.Status {
	if d.beginStatus != nil {
		return *d.beginStatus
	}
	if c.Function != protocol.FunctionProgram && c.Function != protocol.FunctionVerify {
		return protocol.StatusInvalidFunction
	}
	d.open = true
	d.sessionID = c.SessionID
	d.function = c.Function
	d.blockNum = 0
	return protocol.StatusOK
}

func (d *Device) block(c *protocol.BlockCmd) protocol.Status {
	if !d.open {
		return protocol.StatusInvalidSessionID
	}
	d.blockNum++
	if status, ok := d.blockStatus[d.blockNum]; ok {
		return status
	}
	if c.Address < protocol.MinBlockAddress || c.Address > protocol.MaxBlockAddress {
		return protocol.StatusInvalidAddress
	}
	if c.Length > protocol.MaxBlockLength {
		return protocol.StatusInvalidLength
	}
	if c.Function != d.function {
		return protocol.StatusInvalidFunction
	}

	content := c.Payload[:c.Length]
	if d.function == protocol.FunctionVerify {
		if stored, ok := d.flash[c.Address]; !ok || !bytes.Equal(stored, content) {
			return protocol.StatusContentMismatch
		}
		return protocol.StatusOK
	}

	d.flash[c.Address] = append([]byte(nil), content...)
	return protocol.StatusOK
}

func (d *Device) complete(c *protocol.CompleteCmd) protocol.Status {
	if d.completeStatus != nil {
		return *d.completeStatus
	}
	if !d.open || c.SessionID != d.sessionID {
		return protocol.StatusInvalidSessionID
	}
	if c.Function != d.function {
		return protocol.StatusInvalidFunction
	}
	d.open = false
	if d.function == protocol.FunctionProgram {
		d.version = c.Version
	}
	return protocol.StatusOK
}

func knownMessage(id byte) bool {
	switch id {
	case protocol.MsgUpdateBegin, protocol.MsgUpdateBlock, protocol.MsgUpdateComplete:
		return true
	}
	return false
}
