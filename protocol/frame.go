package protocol

import (
	"encoding/binary"
	"fmt"
)

// frameBuilder assembles an outbound frame field by field.
//
// The header and a zero CRC placeholder are written up front. Fields are then
// appended through width-specific methods, and finish patches the CRC in
// place once the whole frame exists.
type frameBuilder struct {
	buf  []byte
	size int
}

// newFrame starts a frame of the given total size and message ID.
func newFrame(size int, messageID byte) *frameBuilder {
	b := &frameBuilder{
		buf:  make([]byte, 0, size),
		size: size,
	}
	b.appendU8(byte(size)) // length
	b.appendU8(0x00)       // flags
	b.appendU8(0x00)       // seq
	b.appendU8(messageID)
	b.appendU32LE(0) // CRC placeholder
	return b
}

func (b *frameBuilder) appendU8(v byte) {
	b.buf = append(b.buf, v)
}

func (b *frameBuilder) appendU16LE(v uint16) {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

func (b *frameBuilder) appendU32LE(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

func (b *frameBuilder) appendBytes(p []byte) {
	b.buf = append(b.buf, p...)
}

// appendPadded appends p followed by zero bytes up to n bytes in total.
// p longer than n is truncated.
func (b *frameBuilder) appendPadded(p []byte, n int) {
	if len(p) > n {
		p = p[:n]
	}
	b.buf = append(b.buf, p...)
	for i := len(p); i < n; i++ {
		b.buf = append(b.buf, 0x00)
	}
}

// appendZeros appends n reserved zero bytes.
func (b *frameBuilder) appendZeros(n int) {
	b.appendPadded(nil, n)
}

// finish checks the frame reached its declared size and patches the CRC.
func (b *frameBuilder) finish() ([]byte, error) {
	if len(b.buf) != b.size {
		return nil, fmt.Errorf("frame assembled to %d bytes, header declares %d", len(b.buf), b.size)
	}
	binary.LittleEndian.PutUint32(b.buf[OffsetCRC:HeaderSize], frameChecksum(b.buf))
	return b.buf, nil
}
