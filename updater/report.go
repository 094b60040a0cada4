package updater

// Mismatch identifies a block whose flash content differs from the image.
type Mismatch struct {
	// Block is the 1-based position of the block in the submitted sequence
	Block int

	// Address is the flash address of the block
	Address uint16
}

// VerificationReport collects the per-block results of a verify session.
type VerificationReport struct {
	SessionID uint32

	// Checked is the number of blocks the device compared
	Checked int

	Mismatches []Mismatch
}

// Passed reports whether every checked block matched.
func (r *VerificationReport) Passed() bool {
	return len(r.Mismatches) == 0
}

// FailedAddresses returns the addresses of the mismatched blocks in submission order.
func (r *VerificationReport) FailedAddresses() []uint16 {
	addrs := make([]uint16, len(r.Mismatches))
	for i, m := range r.Mismatches {
		addrs[i] = m.Address
	}
	return addrs
}
