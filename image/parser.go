package image

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moffa90/go-gestic/protocol"
)

const (
	// BlockHeaderSize is the size of block metadata (address + length)
	BlockHeaderSize = 3

	// BlockChecksumSize is the size of the block checksum field
	BlockChecksumSize = 1

	// MinimumBlockBytes is the smallest decodable block line
	MinimumBlockBytes = BlockHeaderSize + BlockChecksumSize

	// DefaultBlockCapacity is the default initial capacity for the blocks slice
	DefaultBlockCapacity = 256

	directiveIV      = "@iv"
	directiveVersion = "@version"
)

// Parse parses an image file from the given path.
//
// Example:
//
//	img, err := image.Parse("gestic_fw.img")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Version: %s, %d blocks\n", img.Version, len(img.Blocks))
func Parse(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses an image from any io.Reader.
//
// The format is line based. Blank lines and lines starting with '#' are
// ignored. Two directives carry the session parameters:
//
//	@iv 000102030405060708090A0B0C0D
//	@version 1.2.3 loader
//
// Every other line is one hex-encoded block:
//
//	[Address(2 bytes, big-endian)][Length(1 byte)][Data(N bytes)][Checksum(1 byte)]
//
// The checksum is the two's complement of the sum of all preceding bytes.
// Both directives are required and blocks keep their file order.
func ParseReader(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 64*1024)

	img := &Image{Blocks: make([]*Block, 0, DefaultBlockCapacity)}
	var haveIV, haveVersion bool

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || line[0] == '#' {
			continue
		}

		if line[0] == '@' {
			name, value, _ := strings.Cut(line, " ")
			value = strings.TrimSpace(value)
			switch name {
			case directiveIV:
				iv, err := parseIV(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				img.IV = iv
				haveIV = true
			case directiveVersion:
				img.Version = value
				haveVersion = true
			default:
				return nil, fmt.Errorf("line %d: unknown directive %q", lineNum, name)
			}
			continue
		}

		block, err := parseBlock(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		img.Blocks = append(img.Blocks, block)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if !haveIV {
		return nil, fmt.Errorf("missing %s directive", directiveIV)
	}
	if !haveVersion {
		return nil, fmt.Errorf("missing %s directive", directiveVersion)
	}
	if len(img.Blocks) == 0 {
		return nil, fmt.Errorf("no blocks found in file")
	}

	return img, nil
}

func parseIV(value string) ([protocol.IVSize]byte, error) {
	var iv [protocol.IVSize]byte
	data, err := hex.DecodeString(value)
	if err != nil {
		return iv, fmt.Errorf("invalid IV: %w", err)
	}
	if len(data) != protocol.IVSize {
		return iv, fmt.Errorf("invalid IV length: got %d bytes, expected %d", len(data), protocol.IVSize)
	}
	copy(iv[:], data)
	return iv, nil
}

// parseBlock parses a single block line.
//
// Example: "100004AABBCCDDDE"
//
//	Address: 0x1000
//	Length: 0x04
//	Data: [0xAA, 0xBB, 0xCC, 0xDD]
//	Checksum: 0xDE
func parseBlock(line string) (*Block, error) {
	data, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	if len(data) < MinimumBlockBytes {
		return nil, fmt.Errorf("block too short: got %d bytes, minimum is %d", len(data), MinimumBlockBytes)
	}

	blockData := data[BlockHeaderSize : len(data)-BlockChecksumSize]
	if len(blockData) > protocol.BlockPayloadSize {
		return nil, fmt.Errorf("block data too long: got %d bytes, maximum is %d", len(blockData), protocol.BlockPayloadSize)
	}

	checksum := data[len(data)-1]
	calculated := calculateBlockChecksum(data[:len(data)-1])
	if checksum != calculated {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	block := &Block{
		Address:  uint16(data[0])<<8 | uint16(data[1]), // big-endian
		Length:   data[2],
		Data:     make([]byte, len(blockData)),
		Checksum: checksum,
	}
	copy(block.Data, blockData)

	return block, nil
}

// calculateBlockChecksum computes the 8-bit checksum for a block line.
func calculateBlockChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1 // 2's complement
}
