package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a builder precondition violation.
// It is a host programming error, never a device status.
var ErrInvalidArgument = errors.New("invalid argument")

// BuildBeginCmd constructs an update begin frame.
//
// Frame structure (0x1c bytes):
//
//	[0x1C][FLAGS][SEQ][0x80][CRC(4)][SESSION_ID(4)][IV(14)][FN][RSVD]
//
// The function byte is 1 when verifyOnly is set, 0 otherwise. A session begun
// for verification can only verify blocks.
func BuildBeginCmd(sessionID uint32, iv [IVSize]byte, verifyOnly bool) ([]byte, error) {
	b := newFrame(BeginFrameSize, MsgUpdateBegin)
	b.appendU32LE(sessionID)
	b.appendBytes(iv[:])
	b.appendU8(byte(functionFor(verifyOnly)))
	b.appendZeros(BeginReservedSize)
	return b.finish()
}

// BuildBlockCmd constructs an update block frame.
//
// Frame structure (0x8c bytes):
//
//	[0x8C][FLAGS][SEQ][0x81][CRC(4)][ADDR_L][ADDR_H][LEN][FN][PAYLOAD(128)]
//
// The address must lie in MinBlockAddress..MaxBlockAddress, length must not
// exceed MaxBlockLength and data must fit in BlockPayloadSize bytes. The
// payload is always 128 bytes; data is copied in and the rest zero-filled.
func BuildBlockCmd(address uint16, length uint8, data []byte, verifyOnly bool) ([]byte, error) {
	if address < MinBlockAddress || address > MaxBlockAddress {
		return nil, fmt.Errorf("%w: block address 0x%04X outside 0x%04X-0x%04X",
			ErrInvalidArgument, address, MinBlockAddress, MaxBlockAddress)
	}
	if length > MaxBlockLength {
		return nil, fmt.Errorf("%w: block length 0x%02X exceeds 0x%02X",
			ErrInvalidArgument, length, MaxBlockLength)
	}
	if len(data) > BlockPayloadSize {
		return nil, fmt.Errorf("%w: block data is %d bytes, maximum is %d",
			ErrInvalidArgument, len(data), BlockPayloadSize)
	}

	b := newFrame(BlockFrameSize, MsgUpdateBlock)
	b.appendU16LE(address)
	b.appendU8(length)
	b.appendU8(byte(functionFor(verifyOnly)))
	b.appendPadded(data, BlockPayloadSize)
	return b.finish()
}

// BuildCompleteCmd constructs an update complete frame.
//
// Frame structure (0x88 bytes):
//
//	[0x88][FLAGS][SEQ][0x82][CRC(4)][SESSION_ID(4)][FN][VERSION(120)][RSVD(3)]
//
// The session ID must match the one sent in the begin frame. A session begun
// with FunctionProgram must be completed with FunctionProgram; the device does
// not check the pairing. The version string must be ASCII and is truncated or
// zero-padded to VersionSize bytes.
func BuildCompleteCmd(sessionID uint32, fn Function, version string) ([]byte, error) {
	switch fn {
	case FunctionProgram, FunctionVerify, FunctionRestart:
	default:
		return nil, fmt.Errorf("%w: %s is not a complete function", ErrInvalidArgument, fn)
	}
	for i := 0; i < len(version); i++ {
		if version[i] > 0x7F {
			return nil, fmt.Errorf("%w: firmware version is not ASCII (byte %d is 0x%02X)",
				ErrInvalidArgument, i, version[i])
		}
	}

	b := newFrame(CompleteFrameSize, MsgUpdateComplete)
	b.appendU32LE(sessionID)
	b.appendU8(byte(fn))
	b.appendPadded([]byte(version), VersionSize)
	b.appendZeros(CompleteReservedSize)
	return b.finish()
}

// DecodeCommand validates an update frame and decodes its payload.
// It returns a *BeginCmd, *BlockCmd or *CompleteCmd.
//
// This is the device side of the exchange: simulators and tests use it to
// check what the host put on the bus.
func DecodeCommand(frame []byte) (interface{}, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("frame too short: got %d bytes, minimum is %d", len(frame), HeaderSize)
	}
	if int(frame[OffsetLength]) != len(frame) {
		return nil, fmt.Errorf("frame length mismatch: header says %d bytes, got %d",
			frame[OffsetLength], len(frame))
	}

	want := binary.LittleEndian.Uint32(frame[OffsetCRC:HeaderSize])
	if got := frameChecksum(frame); got != want {
		return nil, &ChecksumError{Expected: want, Actual: got}
	}

	body := frame[HeaderSize:]
	switch id := frame[OffsetMessageID]; id {
	case MsgUpdateBegin:
		if len(frame) != BeginFrameSize {
			return nil, fmt.Errorf("begin frame is %d bytes, expected %d", len(frame), BeginFrameSize)
		}
		cmd := &BeginCmd{
			SessionID: binary.LittleEndian.Uint32(body[0:4]),
			Function:  Function(body[4+IVSize]),
		}
		copy(cmd.IV[:], body[4:4+IVSize])
		return cmd, nil

	case MsgUpdateBlock:
		if len(frame) != BlockFrameSize {
			return nil, fmt.Errorf("block frame is %d bytes, expected %d", len(frame), BlockFrameSize)
		}
		cmd := &BlockCmd{
			Address:  binary.LittleEndian.Uint16(body[0:2]),
			Length:   body[2],
			Function: Function(body[3]),
		}
		copy(cmd.Payload[:], body[4:])
		return cmd, nil

	case MsgUpdateComplete:
		if len(frame) != CompleteFrameSize {
			return nil, fmt.Errorf("complete frame is %d bytes, expected %d", len(frame), CompleteFrameSize)
		}
		version := body[5 : 5+VersionSize]
		return &CompleteCmd{
			SessionID: binary.LittleEndian.Uint32(body[0:4]),
			Function:  Function(body[4]),
			Version:   string(bytes.TrimRight(version, "\x00 ")),
		}, nil

	default:
		return nil, fmt.Errorf("unknown message ID 0x%02X", id)
	}
}
