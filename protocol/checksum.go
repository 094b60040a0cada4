package protocol

import "hash/crc32"

// Checksum computes the CRC-32 carried in every update frame.
//
// The device uses the Ethernet CRC-32: polynomial 0x04C11DB7 in reflected
// form, initial value 0xFFFFFFFF and final XOR 0xFFFFFFFF. This is the
// IEEE table of hash/crc32. An empty input yields 0x00000000.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// frameChecksum computes the CRC over the part of a frame it protects:
// everything after the CRC field.
func frameChecksum(frame []byte) uint32 {
	return Checksum(frame[HeaderSize:])
}
