// Package can models CAN data frames and the 29-bit extended identifier
// layout used by the UAVCAN/CAN transport. RTR and error frames are not
// part of the protocol and are not modeled.
package can

// Micros is a timestamp in microseconds on an arbitrary monotonic clock
// supplied by the application. Zero is never a valid timestamp; it marks
// an empty frame or transfer.
type Micros uint64

// Standard MTU values. Other frame payload capacities should not be used
// for outgoing transfers, per the protocol recommendations.
const (
	MTUClassic = 8
	MTUFD      = 64
)

// Frame is one CAN data frame with a 29-bit extended identifier.
// For received frames Timestamp is the reception time; for outgoing frames
// it is the transmission deadline.
type Frame struct {
	Timestamp Micros
	ID        uint32 // 29-bit extended identifier; bits above 29 are zero
	Payload   []byte
}

// IsZero reports whether the frame is the empty sentinel (zero timestamp).
func (f Frame) IsZero() bool { return f.Timestamp == 0 }
