package protocol

import "fmt"

// Function selects what the device does with an update message.
type Function byte

const (
	// FunctionProgram writes blocks to flash
	FunctionProgram Function = 0

	// FunctionVerify compares blocks against flash without writing
	FunctionVerify Function = 1

	// FunctionRestart is only valid in a complete message
	FunctionRestart Function = 3
)

func (f Function) String() string {
	switch f {
	case FunctionProgram:
		return "program"
	case FunctionVerify:
		return "verify"
	case FunctionRestart:
		return "restart"
	default:
		return fmt.Sprintf("function(0x%02X)", byte(f))
	}
}

// functionFor maps the verify-only flag to a function selector.
func functionFor(verifyOnly bool) Function {
	if verifyOnly {
		return FunctionVerify
	}
	return FunctionProgram
}

// Status is the completion code reported by the device at StatusOffset.
// Values without a known meaning are kept as-is; see Recognized.
type Status byte

// Status codes reported by the GestIC library loader.
const (
	StatusOK               Status = 0x00
	StatusUnknownCommand   Status = 0x01
	StatusInvalidSessionID Status = 0x02
	StatusInvalidCRC       Status = 0x03
	StatusInvalidLength    Status = 0x04
	StatusInvalidAddress   Status = 0x05
	StatusInvalidFunction  Status = 0x06
	StatusContentMismatch  Status = 0x08
	StatusWrongParam       Status = 0x0C
)

// Recognized reports whether the status is part of the documented set.
func (s Status) Recognized() bool {
	switch s {
	case StatusOK, StatusUnknownCommand, StatusInvalidSessionID, StatusInvalidCRC,
		StatusInvalidLength, StatusInvalidAddress, StatusInvalidFunction,
		StatusContentMismatch, StatusWrongParam:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusInvalidSessionID:
		return "invalid session ID"
	case StatusInvalidCRC:
		return "invalid CRC"
	case StatusInvalidLength:
		return "invalid length"
	case StatusInvalidAddress:
		return "invalid address"
	case StatusInvalidFunction:
		return "invalid function"
	case StatusContentMismatch:
		return "content mismatch"
	case StatusWrongParam:
		return "wrong parameter"
	default:
		return fmt.Sprintf("unrecognized status 0x%02X", byte(s))
	}
}

// BeginCmd is the decoded content of an update begin message.
type BeginCmd struct {
	SessionID uint32
	IV        [IVSize]byte
	Function  Function
}

// BlockCmd is the decoded content of an update block message.
type BlockCmd struct {
	Address  uint16
	Length   uint8
	Function Function
	Payload  [BlockPayloadSize]byte
}

// CompleteCmd is the decoded content of an update complete message.
type CompleteCmd struct {
	SessionID uint32
	Function  Function

	// Version has trailing zero and space padding removed
	Version string
}
