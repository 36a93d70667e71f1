package transport

import (
	"bytes"
	"testing"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/crc16"
)

// drain copies and pops every queued frame in peek order.
func drain(ins *Instance) []can.Frame {
	var out []can.Frame
	for {
		f := ins.Peek()
		if f.IsZero() {
			break
		}
		out = append(out, can.Frame{
			Timestamp: f.Timestamp,
			ID:        f.ID,
			Payload:   append([]byte(nil), f.Payload...),
		})
		ins.Pop()
	}
	return out
}

func mustPush(t *testing.T, ins *Instance, tr *Transfer) {
	t.Helper()
	if err := ins.Push(tr); err != nil {
		t.Fatalf("Push: %v", err)
	}
}

func TestPushPriorityOrderingWithFIFOTies(t *testing.T) {
	ins := New(WithNodeID(42), WithMTU(can.MTUClassic))
	order := []struct {
		pri     can.Priority
		payload byte
	}{
		{can.PriorityNominal, 'a'},
		{can.PriorityImmediate, 'b'},
		{can.PriorityLow, 'c'},
		{can.PriorityImmediate, 'd'},
	}
	for i, o := range order {
		mustPush(t, ins, &Transfer{
			Timestamp:  1000,
			Priority:   o.pri,
			Kind:       can.KindMessage,
			PortID:     10,
			TransferID: uint8(i),
			Payload:    []byte{o.payload},
		})
	}
	frames := drain(ins)
	if len(frames) != 4 {
		t.Fatalf("queued %d frames, want 4", len(frames))
	}
	want := []byte{'b', 'd', 'a', 'c'} // Immediate first in push order, then Nominal, Low
	for i, f := range frames {
		if f.Payload[0] != want[i] {
			t.Fatalf("frame %d payload %q, want %q", i, f.Payload[0], want[i])
		}
	}
	if !ins.Peek().IsZero() {
		t.Fatal("queue not empty after drain")
	}
}

func TestPushSingleFrameFraming(t *testing.T) {
	ins := New(WithNodeID(7), WithMTU(can.MTUClassic))
	mustPush(t, ins, &Transfer{
		Timestamp:  5,
		Priority:   can.PriorityNominal,
		Kind:       can.KindMessage,
		PortID:     123,
		TransferID: 9,
		Payload:    []byte{1, 2, 3},
	})
	frames := drain(ins)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if len(f.Payload) != 4 {
		t.Fatalf("payload length %d, want 4", len(f.Payload))
	}
	if tail := f.Payload[3]; tail != 0x80|0x40|0x20|9 {
		t.Fatalf("tail = %#02x", tail)
	}
	fields, ok := can.ParseID(f.ID)
	if !ok || fields.PortID != 123 || fields.Source != 7 || fields.Kind != can.KindMessage {
		t.Fatalf("ID fields = %+v ok=%v", fields, ok)
	}
}

func TestPushMultiFrameFraming(t *testing.T) {
	ins := New(WithNodeID(10), WithMTU(can.MTUClassic))
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	mustPush(t, ins, &Transfer{
		Timestamp:  77,
		Priority:   can.PriorityFast,
		Kind:       can.KindMessage,
		PortID:     500,
		TransferID: 3,
		Payload:    payload,
	})
	frames := drain(ins)
	// 20 payload + 2 CRC = 22 bytes at 7 per frame: 4 frames.
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	wantTails := []byte{0x80 | 0x20 | 3, 3, 0x20 | 3, 0x40 | 3}
	var stream []byte
	for i, f := range frames {
		if tail := f.Payload[len(f.Payload)-1]; tail != wantTails[i] {
			t.Fatalf("frame %d tail = %#02x, want %#02x", i, tail, wantTails[i])
		}
		stream = append(stream, f.Payload[:len(f.Payload)-1]...)
	}
	if !bytes.Equal(stream[:20], payload) {
		t.Fatalf("reassembled stream prefix mismatch")
	}
	sum := crc16.Checksum(payload)
	if stream[20] != byte(sum>>8) || stream[21] != byte(sum) {
		t.Fatalf("trailing CRC = %x %x, want %#04x", stream[20], stream[21], sum)
	}
}

func TestPushAllocFailureLeavesQueueIntact(t *testing.T) {
	pool := NewPool(2, can.MTUClassic)
	ins := New(WithNodeID(1), WithMTU(can.MTUClassic), WithAllocator(pool))
	mustPush(t, ins, &Transfer{
		Timestamp: 1, Kind: can.KindMessage, PortID: 1, Payload: []byte{0xEE},
	})
	// Needs 4 frames but only one block remains: the push must fail and
	// release everything it allocated.
	err := ins.Push(&Transfer{
		Timestamp: 2, Kind: can.KindMessage, PortID: 2, Payload: make([]byte, 20),
	})
	if err != ErrMemory {
		t.Fatalf("Push = %v, want ErrMemory", err)
	}
	if pool.Capacity() != 1 {
		t.Fatalf("pool capacity %d after failed push, want 1", pool.Capacity())
	}
	frames := drain(ins)
	if len(frames) != 1 || frames[0].Payload[0] != 0xEE {
		t.Fatalf("queue disturbed by failed push: %v", frames)
	}
	if pool.Capacity() != 2 {
		t.Fatalf("pool capacity %d after drain, want 2", pool.Capacity())
	}
}

func TestPushAnonymous(t *testing.T) {
	ins := New(WithMTU(can.MTUClassic)) // node-ID left unset
	if err := ins.Push(&Transfer{
		Timestamp: 1, Kind: can.KindMessage, PortID: 5, Payload: make([]byte, 20),
	}); err != ErrInvalidArgument {
		t.Fatalf("anonymous multi-frame Push = %v, want ErrInvalidArgument", err)
	}
	mustPush(t, ins, &Transfer{
		Timestamp: 1, Kind: can.KindMessage, PortID: 5, Payload: []byte{1},
	})
	frames := drain(ins)
	fields, ok := can.ParseID(frames[0].ID)
	if !ok || fields.Source != can.NodeIDUnset {
		t.Fatalf("anonymous frame fields = %+v ok=%v", fields, ok)
	}
}

func TestPushValidation(t *testing.T) {
	ins := New(WithNodeID(3))
	cases := []struct {
		name string
		tr   Transfer
	}{
		{"zero timestamp", Transfer{Kind: can.KindMessage, PortID: 1}},
		{"subject out of range", Transfer{Timestamp: 1, Kind: can.KindMessage, PortID: can.SubjectIDMax + 1}},
		{"service out of range", Transfer{Timestamp: 1, Kind: can.KindRequest, PortID: can.ServiceIDMax + 1, RemoteNodeID: 4}},
		{"service without remote", Transfer{Timestamp: 1, Kind: can.KindRequest, PortID: 1, RemoteNodeID: can.NodeIDUnset}},
		{"unknown kind", Transfer{Timestamp: 1, Kind: 9, PortID: 1}},
	}
	for _, tc := range cases {
		tr := tc.tr
		if err := ins.Push(&tr); err != ErrInvalidArgument {
			t.Errorf("%s: Push = %v, want ErrInvalidArgument", tc.name, err)
		}
	}
	if !ins.Peek().IsZero() {
		t.Fatal("rejected pushes left frames queued")
	}
}

func TestSetMTUClamping(t *testing.T) {
	ins := New()
	cases := []struct{ in, want int }{
		{3, 8}, {8, 8}, {11, 8}, {12, 12}, {63, 48}, {64, 64}, {100, 64},
	}
	for _, tc := range cases {
		ins.SetMTU(tc.in)
		if got := ins.MTU(); got != tc.want {
			t.Errorf("SetMTU(%d) -> %d, want %d", tc.in, got, tc.want)
		}
	}
}
