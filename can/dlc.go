package can

// DLCToLength maps a CAN data length code to the payload length in bytes.
var DLCToLength = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// LengthToDLC maps a payload length to the smallest DLC that can carry it.
var LengthToDLC = [65]uint8{
	0, 1, 2, 3, 4, 5, 6, 7, 8, // 0..8
	9, 9, 9, 9, // 9..12
	10, 10, 10, 10, // 13..16
	11, 11, 11, 11, // 17..20
	12, 12, 12, 12, // 21..24
	13, 13, 13, 13, 13, 13, 13, 13, // 25..32
	14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, // 33..48
	15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, // 49..64
}

// RoundUpLength returns the smallest valid CAN payload length that is
// greater than or equal to n. n must be in [0, 64].
func RoundUpLength(n int) int {
	return DLCToLength[LengthToDLC[n]]
}

// ValidLength reports whether n is an exact CAN payload length.
func ValidLength(n int) bool {
	return n >= 0 && n <= 64 && DLCToLength[LengthToDLC[n]] == n
}
