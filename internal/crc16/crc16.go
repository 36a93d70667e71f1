// Package crc16 implements the CRC-16/CCITT-FALSE checksum used as the
// transfer integrity check: polynomial 0x1021, initial value 0xFFFF, no
// input or output reflection, no final XOR. Appending the big-endian
// checksum to the data makes the CRC of the whole sequence zero, which is
// how receivers validate multi-frame transfers incrementally.
package crc16

var table [256]uint16

func init() {
	for i := range table {
		c := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ 0x1021
			} else {
				c <<= 1
			}
		}
		table[i] = c
	}
}

// CRC is a running checksum accumulator. The zero value is not valid;
// start from New.
type CRC uint16

// New returns the initial accumulator value.
func New() CRC { return 0xFFFF }

// UpdateByte folds one byte into the accumulator.
func (c CRC) UpdateByte(b byte) CRC {
	return c<<8 ^ CRC(table[byte(c>>8)^b])
}

// Update folds p into the accumulator.
func (c CRC) Update(p []byte) CRC {
	for _, b := range p {
		c = c.UpdateByte(b)
	}
	return c
}

// Sum16 returns the checksum value accumulated so far.
func (c CRC) Sum16() uint16 { return uint16(c) }

// Checksum returns the CRC-16/CCITT-FALSE of p.
func Checksum(p []byte) uint16 { return New().Update(p).Sum16() }
