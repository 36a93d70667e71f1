package dsdl

import "math"

// Float16bits converts an IEEE 754 binary32 value to its binary16 bit
// pattern, rounding to nearest-even. Overflow saturates to infinity; NaN
// maps to a quiet NaN (the payload is not preserved bit-exact).
func Float16bits(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23) & 0xFF
	man := b & 0x7FFFFF

	if exp == 0xFF { // infinity or NaN
		if man != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	}

	e := exp - 112 // rebase: binary32 bias 127 -> binary16 bias 15
	if e >= 0x1F {
		return sign | 0x7C00 // overflow to infinity
	}
	if e <= 0 {
		if e < -10 {
			return sign // underflows to zero even after rounding
		}
		// Subnormal result: shift the full 24-bit significand down so the
		// unit becomes 2^-24, rounding to nearest-even on the way.
		m := man | 0x800000
		shift := uint32(14 - e)
		half := m >> shift
		rem := m & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	}

	// Normal result. A mantissa carry from rounding propagates into the
	// exponent field naturally, including the carry into infinity.
	half := uint16(e)<<10 | uint16(man>>13)
	rem := man & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | half
}

// Float16frombits converts a binary16 bit pattern to binary32. The
// conversion is exact: every binary16 value is representable in binary32.
func Float16frombits(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	man := uint32(h & 0x3FF)

	switch {
	case exp == 0x1F: // infinity or NaN
		if man != 0 {
			return math.Float32frombits(sign | 0x7FC00000 | man<<13)
		}
		return math.Float32frombits(sign | 0x7F800000)
	case exp == 0:
		if man == 0 {
			return math.Float32frombits(sign) // signed zero
		}
		// Subnormal: normalize into a binary32 normal.
		e := uint32(113)
		for man&0x400 == 0 {
			man <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (man&0x3FF)<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | man<<13)
}
