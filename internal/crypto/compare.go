package crypto

import "crypto/subtle"

// PadRight returns a copy of b extended with zero bytes to length n.
// If b is already n bytes or longer the copy is returned unchanged in length.
func PadRight(b []byte, n int) []byte {
	if n < len(b) {
		n = len(b)
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ConstantTimeEqual reports whether a and b are identical. The running time
// depends only on max(len(a), len(b)), never on the position of the first difference.
func ConstantTimeEqual(a, b []byte) bool {
	eq, _ := constantTimeCompare(a, b)
	return eq
}

// constantTimeCompare also returns how many byte positions were visited,
// which is the loop's exit index.
func constantTimeCompare(a, b []byte) (bool, int) {
	n := max(len(a), len(b))
	pa, pb := PadRight(a, n), PadRight(b, n)

	var diff byte
	i := 0
	for ; i < n; i++ {
		diff |= pa[i] ^ pb[i]
	}

	// Zero padding hides a length mismatch when the longer input ends in zeros,
	// so the lengths are folded in as well.
	ld := uint64(len(a)) ^ uint64(len(b))
	lenDiffers := int((ld | -ld) >> 63)

	return subtle.ConstantTimeByteEq(diff, 0)&(1^lenDiffers) == 1, i
}
