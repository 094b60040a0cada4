// Package protocol implements the GestIC library-loader firmware update protocol.
//
// This package builds update frames and decodes device replies. It does no I/O;
// see package updater for the session state machine that drives a device.
//
// # Protocol Overview
//
// The host sends three fixed-size messages over I2C:
//
//	Begin:    [0x1C][FLAGS][SEQ][0x80][CRC(4)][SESSION_ID(4)][IV(14)][FN][RSVD]
//	Block:    [0x8C][FLAGS][SEQ][0x81][CRC(4)][ADDR(2)][LEN][FN][PAYLOAD(128)]
//	Complete: [0x88][FLAGS][SEQ][0x82][CRC(4)][SESSION_ID(4)][FN][VERSION(120)][RSVD(3)]
//
// Where:
//   - The first byte is the total frame length
//   - FLAGS and SEQ are always zero
//   - CRC is the Ethernet CRC-32 of every byte after the CRC field, little-endian
//   - Multi-byte fields are little-endian
//   - FN is 0 (program), 1 (verify) or, for Complete only, 3 (restart)
//
// After each message the device asserts its transfer line and the host reads a
// 132-byte reply whose status byte sits at offset 6.
//
// # Command Builders
//
//	frame, err := protocol.BuildBeginCmd(sessionID, iv, false)
//	frame, err := protocol.BuildBlockCmd(0x1000, 0x80, data, false)
//	frame, err := protocol.BuildCompleteCmd(sessionID, protocol.FunctionProgram, version)
//
// Builders return an error wrapping ErrInvalidArgument when an argument is out
// of range (for example a block address below 0x1000).
//
// # Reply Decoding
//
//	status, err := protocol.DecodeStatus(reply)
//	if status != protocol.StatusOK {
//	    return &protocol.ProtocolError{Operation: "update block", Status: status}
//	}
//
// Unknown status bytes decode without error; Status.Recognized reports false
// for them and String renders the raw value.
package protocol
