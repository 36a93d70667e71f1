package dsdl

import (
	"math"
	"math/rand"
	"testing"
)

func TestUintRoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	buf := make([]byte, 32)
	for width := uint(1); width <= 64; width++ {
		mask := ^uint64(0)
		if width < 64 {
			mask = 1<<width - 1
		}
		for trial := 0; trial < 16; trial++ {
			off := uint(rng.Intn(100))
			v := rng.Uint64() & mask
			for i := range buf {
				buf[i] = 0xAA
			}
			PutUint(buf, off, width, v)
			if got := Uint(buf, off, width); got != v {
				t.Fatalf("width %d off %d: got %#x, want %#x", width, off, got, v)
			}
		}
	}
}

func TestPutUintLeavesNeighborsAlone(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	PutUint(buf, 5, 9, 0) // clears bits 5..13 only
	want := []byte{0x1F, 0xC0, 0xFF, 0xFF}
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("buf = %x, want %x", buf, want)
		}
	}
}

func TestIntSignExtension(t *testing.T) {
	cases := []struct {
		width uint
		v     int64
	}{
		{2, -1}, {3, -4}, {3, 3}, {8, -128}, {8, 127},
		{12, -2048}, {16, -123}, {33, -(1 << 32)}, {64, -1}, {64, math.MinInt64},
	}
	buf := make([]byte, 16)
	for _, tc := range cases {
		for i := range buf {
			buf[i] = 0x55
		}
		PutInt(buf, 3, tc.width, tc.v)
		if got := Int(buf, 3, tc.width); got != tc.v {
			t.Errorf("width %d: got %d, want %d", tc.width, got, tc.v)
		}
	}
}

func TestBoolAndFloats(t *testing.T) {
	buf := make([]byte, 16)
	PutBool(buf, 7, true)
	if !Bool(buf, 7) || Bool(buf, 6) {
		t.Fatal("bool round trip failed")
	}

	PutFloat32(buf, 9, -123.456)
	if got := Float32(buf, 9); got != -123.456 {
		t.Fatalf("float32 round trip: got %v", got)
	}
	PutFloat32(buf, 9, float32(math.NaN()))
	if !math.IsNaN(float64(Float32(buf, 9))) {
		t.Fatal("float32 NaN lost")
	}

	PutFloat64(buf, 42, math.Pi)
	if got := Float64(buf, 42); got != math.Pi {
		t.Fatalf("float64 round trip: got %v", got)
	}

	PutFloat16(buf, 1, 1.5)
	if got := Float16(buf, 1); got != 1.5 {
		t.Fatalf("float16 round trip: got %v", got)
	}
}

func BenchmarkPutUint(b *testing.B) {
	buf := make([]byte, 16)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		PutUint(buf, uint(i)%7, 48, uint64(i))
	}
}

func BenchmarkUint(b *testing.B) {
	buf := make([]byte, 16)
	PutUint(buf, 3, 48, 0x123456789AB)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Uint(buf, 3, 48)
	}
}
