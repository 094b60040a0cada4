package protocol

// Frame header layout shared by every host-to-device message.
const (
	// OffsetLength holds the total frame size in bytes
	OffsetLength = 0

	// OffsetFlags is always zero in update messages
	OffsetFlags = 1

	// OffsetSeq is always zero in update messages
	OffsetSeq = 2

	// OffsetMessageID identifies the message type
	OffsetMessageID = 3

	// OffsetCRC is where the little-endian CRC-32 is patched in
	OffsetCRC = 4

	// HeaderSize is the size of the header including the CRC field.
	// The CRC covers every byte from HeaderSize to the end of the frame.
	HeaderSize = 8
)

// Message IDs.
const (
	// MsgUpdateBegin opens an update session (FW_UPDATE_START)
	MsgUpdateBegin = 0x80

	// MsgUpdateBlock programs or verifies one flash block (FW_UPDATE_BLOCK)
	MsgUpdateBlock = 0x81

	// MsgUpdateComplete closes an update session (FW_UPDATE_COMPLETED)
	MsgUpdateComplete = 0x82
)

// Frame sizes in bytes, including the header.
const (
	BeginFrameSize    = 0x1c
	BlockFrameSize    = 0x8c
	CompleteFrameSize = 0x88

	// ResponseSize is the fixed size of every device reply
	ResponseSize = 132

	// StatusOffset is the position of the status byte within a reply
	StatusOffset = 6
)

// Payload field sizes.
const (
	// IVSize is the size of the image decryption initialization vector
	IVSize = 14

	// BlockPayloadSize is the fixed payload size of a block message.
	// Shorter image data is zero-padded on the right.
	BlockPayloadSize = 128

	// MaxBlockLength is the largest value accepted in the block length field
	MaxBlockLength = 0x80

	// VersionSize is the fixed size of the firmware version string field
	VersionSize = 120

	// BeginReservedSize is the number of reserved bytes at the end of a begin message
	BeginReservedSize = 1

	// CompleteReservedSize is the number of reserved bytes at the end of a complete message
	CompleteReservedSize = 3
)

// Flash address range open to update blocks.
// The lower 4 KiB belongs to the device's library loader.
const (
	MinBlockAddress = 0x1000
	MaxBlockAddress = 0x7FFF
)

// DefaultAddress is the 7-bit I2C address of the GestIC controller.
const DefaultAddress = 0x42
