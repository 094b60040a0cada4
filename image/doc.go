// Package image parses GestIC firmware update images.
//
// An image holds everything one update session needs: the IV for the begin
// frame, the version string for the complete frame and the ordered list of
// flash blocks.
//
// # File Format
//
//	# GestIC loader 1.2
//	@iv 000102030405060708090A0B0C0D
//	@version 1.2
//	100080<128 data bytes>CS
//	108080<128 data bytes>CS
//
// Block lines are hex encoded: a big-endian 16-bit address, a length byte,
// up to 128 data bytes and a two's complement checksum over the line.
//
// # Usage
//
//	img, err := image.Parse("gestic_app.img")
//	if err != nil {
//	    return err
//	}
//	if err := img.Validate(); err != nil {
//	    return err
//	}
package image
