/*
Package bitint provides the power-of-two helpers used to size FFT windows.

	// Round a sample count up to a valid FFT size
	fftSize := bitint.NextPowerOfTwo(blockSize * window) // 1000 -> 1024

	// Reject configured FFT sizes the transform cannot use
	ok := bitint.IsPowerOfTwo(fftSize)

NextPowerOfTwo subtracts one before taking the bit length, so a value that
is already a power of two maps to itself instead of doubling:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Values below 1
// return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 for values
// below 1.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// a single bit set, so clearing its lowest set bit with n&(n-1) yields 0.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
