// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to validate and size
FFT windows. All functions are allocation free and safe to call from the
capture callback.

Usage:

	// Reject an FFT size the radix-2 transform cannot handle
	if !bitint.IsPowerOfTwo(fftSize) { ... }

	// Suggest the nearest valid size to the user
	hint := bitint.NextPowerOfTwo(3000) // 4096

	// Number of butterfly stages for a window
	stages := bitint.Log2(2048) // 11

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved: for 8 (0b1000), 8-1 = 7 (0b0111) has a bit
length of 3 and 1<<3 = 8. Without the subtraction the bit length of 8 is 4
and the result would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise. For powers of two
// it is the exact exponent.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
