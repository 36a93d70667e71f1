package crc16

import "testing"

func TestChecksumKnownAnswer(t *testing.T) {
	// Canonical CRC-16/CCITT-FALSE check value.
	if got := Checksum([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("Checksum = %#04x, want 0x29b1", got)
	}
	if got := Checksum(nil); got != 0xFFFF {
		t.Fatalf("Checksum(nil) = %#04x, want 0xffff", got)
	}
}

func TestSelfCheckProperty(t *testing.T) {
	// CRC over data plus its own big-endian checksum must be zero; the RX
	// pipeline relies on this to validate transfers incrementally.
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	sum := Checksum(data)
	whole := append(append([]byte(nil), data...), byte(sum>>8), byte(sum))
	if got := Checksum(whole); got != 0 {
		t.Fatalf("self-check CRC = %#04x, want 0", got)
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	data := []byte("incremental vs one-shot")
	c := New()
	for _, b := range data {
		c = c.UpdateByte(b)
	}
	if c.Sum16() != Checksum(data) {
		t.Fatalf("incremental %#04x != one-shot %#04x", c.Sum16(), Checksum(data))
	}
	split := New().Update(data[:7]).Update(data[7:])
	if split.Sum16() != Checksum(data) {
		t.Fatalf("split update %#04x != one-shot %#04x", split.Sum16(), Checksum(data))
	}
}
