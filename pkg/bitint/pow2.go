/*
Package bitint provides the power-of-2 helpers used to size FFT analysis
buffers. Analysis resolution is configured as an exponent (2^8 .. 2^14) so
most callers go through ClampedPow2; the remaining helpers validate sizes
coming from configuration files.

All operations are O(1), allocation free and safe to call from the render
path.

Usage:

	size := bitint.ClampedPow2(exp, 8, 14) // 2^exp, exp kept in [8,14]
	exp := bitint.Log2(size)              // back to the exponent
	ok := bitint.IsPowerOfTwo(size)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before measuring the bit length so that exact
powers of two are preserved:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Zero and negative
// sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of the highest set bit of n, which is the exact
// base-2 logarithm when n is a power of two. Returns -1 for n <= 0.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

// ClampExponent limits exp to [minExp, maxExp].
func ClampExponent(exp, minExp, maxExp int) int {
	if exp < minExp {
		return minExp
	}
	if exp > maxExp {
		return maxExp
	}
	return exp
}

// ClampedPow2 returns 2^exp after clamping exp to [minExp, maxExp].
func ClampedPow2(exp, minExp, maxExp int) int {
	return 1 << ClampExponent(exp, minExp, maxExp)
}
