package image

import (
	"fmt"

	"github.com/moffa90/go-gestic/protocol"
)

// Image is a parsed GestIC firmware image: one loader or application update.
type Image struct {
	// IV is the 14-byte initialisation vector sent with the begin frame
	IV [protocol.IVSize]byte

	// Version is the firmware version string sent with the complete frame
	Version string

	// Blocks contains the flash blocks in the order they are sent
	Blocks []*Block
}

// Block is a single flash block of an image.
type Block struct {
	// Address is the flash address of the block
	Address uint16

	// Length is the length field sent to the device
	Length uint8

	// Data is the block content, at most 128 bytes
	Data []byte

	// Checksum is the row checksum from the file
	Checksum byte
}

// Size returns the sum of the block length fields.
func (img *Image) Size() int {
	n := 0
	for _, b := range img.Blocks {
		n += int(b.Length)
	}
	return n
}

// Validate checks that every block can be framed and that the version string
// can be sent in a complete frame.
func (img *Image) Validate() error {
	if len(img.Blocks) == 0 {
		return fmt.Errorf("image has no blocks")
	}
	if len(img.Version) > protocol.VersionSize {
		return fmt.Errorf("version is %d characters, maximum is %d", len(img.Version), protocol.VersionSize)
	}
	for i := 0; i < len(img.Version); i++ {
		if img.Version[i] > 0x7F {
			return fmt.Errorf("version is not ASCII (byte %d is 0x%02X)", i, img.Version[i])
		}
	}
	for i, b := range img.Blocks {
		if b == nil {
			return fmt.Errorf("block %d is nil", i)
		}
		if b.Address < protocol.MinBlockAddress || b.Address > protocol.MaxBlockAddress {
			return fmt.Errorf("block %d: address 0x%04X outside 0x%04X-0x%04X",
				i, b.Address, protocol.MinBlockAddress, protocol.MaxBlockAddress)
		}
		if b.Length > protocol.MaxBlockLength {
			return fmt.Errorf("block %d: length 0x%02X exceeds 0x%02X", i, b.Length, protocol.MaxBlockLength)
		}
		if len(b.Data) > protocol.BlockPayloadSize {
			return fmt.Errorf("block %d: %d data bytes, maximum is %d", i, len(b.Data), protocol.BlockPayloadSize)
		}
	}
	return nil
}
