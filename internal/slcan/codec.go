// Package slcan implements the LAWICEL serial-line CAN (SLCAN) ASCII
// protocol used by common USB-CAN adapters. Only classic CAN data frames
// with extended identifiers are relevant to the transport, so the codec
// emits and consumes 'T' records exclusively; other record types on the
// inbound stream are skipped.
package slcan

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/metrics"
)

// Codec encodes/decodes SLCAN records. Stateless and safe for concurrent use.
type Codec struct{}

// ErrFrameTooLarge is returned when a frame payload exceeds the 8 bytes
// classic CAN can carry; SLCAN has no CAN FD framing.
var ErrFrameTooLarge = errors.New("slcan: payload exceeds classic CAN limit")

const hexDigits = "0123456789ABCDEF"

// Encode renders one extended data frame as "T<id:8 hex><dlc><data hex>\r".
func (Codec) Encode(f can.Frame) ([]byte, error) {
	if len(f.Payload) > can.MTUClassic {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, 0, 10+2*len(f.Payload)+1)
	out = append(out, 'T')
	out = fmt.Appendf(out, "%08X", f.ID&0x1FFFFFFF)
	out = append(out, '0'+byte(len(f.Payload)))
	for _, b := range f.Payload {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	out = append(out, '\r')
	return out, nil
}

// DecodeStream consumes complete '\r'-terminated records from in, emitting
// extended data frames via out. Incomplete trailing input stays buffered
// for the next call; malformed records are counted and skipped.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) {
	for {
		data := in.Bytes()
		i := bytes.IndexByte(data, '\r')
		if i < 0 {
			return
		}
		rec := data[:i]
		if f, ok := decodeRecord(rec); ok {
			out(f)
		}
		in.Next(i + 1)
	}
}

func decodeRecord(rec []byte) (can.Frame, bool) {
	var f can.Frame
	if len(rec) == 0 || rec[0] != 'T' {
		// Status replies, standard-ID frames, and empty keepalives are not
		// ours to interpret.
		return f, false
	}
	if len(rec) < 10 {
		metrics.IncRxDropped(metrics.DropMalformed)
		return f, false
	}
	id, ok := parseHex(rec[1:9])
	if !ok {
		metrics.IncRxDropped(metrics.DropMalformed)
		return f, false
	}
	dlc := int(rec[9] - '0')
	if dlc < 0 || dlc > can.MTUClassic || len(rec) != 10+2*dlc {
		metrics.IncRxDropped(metrics.DropMalformed)
		return f, false
	}
	payload := make([]byte, dlc)
	for i := 0; i < dlc; i++ {
		b, ok := parseHex(rec[10+2*i : 12+2*i])
		if !ok {
			metrics.IncRxDropped(metrics.DropMalformed)
			return f, false
		}
		payload[i] = byte(b)
	}
	f.ID = id & 0x1FFFFFFF
	f.Payload = payload
	return f, true
}

func parseHex(s []byte) (uint32, bool) {
	var v uint32
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'A' && c <= 'F':
			v |= uint32(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		default:
			return 0, false
		}
	}
	return v, true
}
