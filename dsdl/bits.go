// Package dsdl implements the bit-level primitive codec used to serialize
// and deserialize scalar fields of structured payloads: unsigned and signed
// integers of 1 to 64 bits, booleans, and IEEE 754 floats of 16, 32, and
// 64 bits, at arbitrary bit offsets independent of byte alignment.
//
// The wire convention is least-significant-bit-first within each byte.
// All functions are pure and allocation-free. Bit lengths outside [1, 64]
// are a caller contract violation and are not runtime-checked; the layout
// is expected to come from static schema compilation.
package dsdl

import (
	"encoding/binary"
	"math"
)

// copyBits copies length bits from src starting at bit srcOff into dst
// starting at bit dstOff, LSB-first within each byte. Bits of dst outside
// the target range are left untouched.
func copyBits(dst []byte, dstOff, length uint, src []byte, srcOff uint) {
	if dstOff%8 == 0 && srcOff%8 == 0 {
		// Byte-aligned fast path.
		n := length / 8
		copy(dst[dstOff/8:], src[srcOff/8:srcOff/8+n])
		if rem := length % 8; rem != 0 {
			mask := byte(1<<rem) - 1
			d := dstOff/8 + n
			dst[d] = dst[d]&^mask | src[srcOff/8+n]&mask
		}
		return
	}
	for length > 0 {
		sb, so := srcOff/8, srcOff%8
		db, do := dstOff/8, dstOff%8
		n := 8 - so
		if m := 8 - do; m < n {
			n = m
		}
		if length < n {
			n = length
		}
		mask := byte(1<<n) - 1
		bits := (src[sb] >> so) & mask
		dst[db] = dst[db]&^(mask<<do) | bits<<do
		srcOff += n
		dstOff += n
		length -= n
	}
}

// PutUint writes the low lenBit bits of v into buf starting at bit offBit.
func PutUint(buf []byte, offBit, lenBit uint, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	copyBits(buf, offBit, lenBit, tmp[:], 0)
}

// Uint reads lenBit bits from buf starting at bit offBit, zero-extended.
func Uint(buf []byte, offBit, lenBit uint) uint64 {
	var tmp [8]byte
	copyBits(tmp[:], 0, lenBit, buf, offBit)
	return binary.LittleEndian.Uint64(tmp[:])
}

// PutInt writes the low lenBit bits of the two's-complement representation
// of v into buf starting at bit offBit.
func PutInt(buf []byte, offBit, lenBit uint, v int64) {
	PutUint(buf, offBit, lenBit, uint64(v))
}

// Int reads lenBit bits from buf starting at bit offBit and sign-extends
// the result.
func Int(buf []byte, offBit, lenBit uint) int64 {
	v := Uint(buf, offBit, lenBit)
	if lenBit < 64 && v&(1<<(lenBit-1)) != 0 {
		v |= ^uint64(0) << lenBit
	}
	return int64(v)
}

// PutBool writes a single bit at offBit.
func PutBool(buf []byte, offBit uint, v bool) {
	var b uint64
	if v {
		b = 1
	}
	PutUint(buf, offBit, 1, b)
}

// Bool reads a single bit at offBit.
func Bool(buf []byte, offBit uint) bool {
	return Uint(buf, offBit, 1) != 0
}

// Floats travel as their IEEE 754 bit patterns, never via numeric
// conversion, so NaN payloads and signed zeros survive the trip.

// PutFloat32 writes the binary32 bit pattern of v at offBit.
func PutFloat32(buf []byte, offBit uint, v float32) {
	PutUint(buf, offBit, 32, uint64(math.Float32bits(v)))
}

// Float32 reads a binary32 value from offBit.
func Float32(buf []byte, offBit uint) float32 {
	return math.Float32frombits(uint32(Uint(buf, offBit, 32)))
}

// PutFloat64 writes the binary64 bit pattern of v at offBit.
func PutFloat64(buf []byte, offBit uint, v float64) {
	PutUint(buf, offBit, 64, math.Float64bits(v))
}

// Float64 reads a binary64 value from offBit.
func Float64(buf []byte, offBit uint) float64 {
	return math.Float64frombits(Uint(buf, offBit, 64))
}

// PutFloat16 narrows v to binary16 and writes its bit pattern at offBit.
func PutFloat16(buf []byte, offBit uint, v float32) {
	PutUint(buf, offBit, 16, uint64(Float16bits(v)))
}

// Float16 reads a binary16 value from offBit and widens it to float32.
func Float16(buf []byte, offBit uint) float32 {
	return Float16frombits(uint16(Uint(buf, offBit, 16)))
}
