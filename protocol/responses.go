package protocol

import "fmt"

// DecodeStatus extracts the completion status from a device reply.
//
// Every reply is ResponseSize bytes with the status at StatusOffset:
//
//	[...6 bytes...][STATUS][...125 bytes...]
//
// A status byte outside the documented set is returned unchanged rather than
// rejected; check Status.Recognized. An error is only returned when the reply
// does not have the fixed size.
func DecodeStatus(reply []byte) (Status, error) {
	if len(reply) != ResponseSize {
		return 0, fmt.Errorf("invalid reply length: got %d bytes, expected %d", len(reply), ResponseSize)
	}
	return Status(reply[StatusOffset]), nil
}
