package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/transport"
)

func TestEncodeHeartbeat(t *testing.T) {
	got := encodeHeartbeat(0x01020304, 2, 5, 0x12345)
	want := []byte{0x04, 0x03, 0x02, 0x01, 0xB6, 0x68, 0x24}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeHeartbeat = % X, want % X", got, want)
	}
}

func testNode(t *testing.T, cfg *appConfig, filter transport.Filter) (*node, *[]can.Frame) {
	t.Helper()
	ins := transport.New(
		transport.WithNodeID(can.NodeID(cfg.nodeID)),
		transport.WithMTU(cfg.mtu),
		transport.WithFilter(filter),
	)
	t.Cleanup(ins.Close)
	sent := &[]can.Frame{}
	send := func(fr can.Frame) error {
		cp := fr
		cp.Payload = append([]byte(nil), fr.Payload...)
		*sent = append(*sent, cp)
		return nil
	}
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &node{cfg: cfg, ins: ins, send: send, l: l, now: nodeClock(), start: time.Now()}, sent
}

// feedTX pops everything queued on src and hands the frames to sink.
func feedTX(src *transport.Instance, sink func(*can.Frame)) {
	for {
		fr := src.Peek()
		if fr.IsZero() {
			return
		}
		cp := fr
		cp.Payload = append([]byte(nil), fr.Payload...)
		src.Pop()
		sink(&cp)
	}
}

func TestHeartbeatPublication(t *testing.T) {
	cfg := validConfig()
	cfg.nodeID = 7
	cfg.mtu = 8
	n, sent := testNode(t, cfg, transport.AcceptAll(transport.DefaultTransferIDTimeout, 64))

	n.publishHeartbeat()
	n.publishHeartbeat()
	if len(*sent) != 2 {
		t.Fatalf("sent %d frames, want 2", len(*sent))
	}

	listener := transport.New(
		transport.WithNodeID(9),
		transport.WithFilter(transport.AcceptAll(transport.DefaultTransferIDTimeout, 64)),
	)
	defer listener.Close()
	var got []transport.Transfer
	for i := range *sent {
		tr, ok, err := listener.Accept(&(*sent)[i])
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			cp := tr
			cp.Payload = append([]byte(nil), tr.Payload...)
			got = append(got, cp)
		}
	}
	if len(got) != 2 {
		t.Fatalf("reassembled %d transfers, want 2", len(got))
	}
	for i, tr := range got {
		if tr.Kind != can.KindMessage || tr.PortID != can.PortID(cfg.subject) || tr.RemoteNodeID != 7 {
			t.Fatalf("transfer %d header = %+v", i, tr)
		}
		if len(tr.Payload) != heartbeatBytes {
			t.Fatalf("transfer %d payload %d bytes", i, len(tr.Payload))
		}
		if tr.TransferID != uint8(i) {
			t.Fatalf("transfer %d tid = %d", i, tr.TransferID)
		}
	}
}

func TestEchoService(t *testing.T) {
	cfg := validConfig()
	cfg.nodeID = 7
	cfg.mtu = 8
	cfg.echoService = 42
	filter := echoFilter{base: &portFilter{params: map[subKey]transport.RxParams{}}, port: 42}
	n, sent := testNode(t, cfg, filter)

	requester := transport.New(
		transport.WithNodeID(9),
		transport.WithMTU(8),
		transport.WithFilter(transport.AcceptAll(transport.DefaultTransferIDTimeout, 64)),
	)
	defer requester.Close()
	req := transport.Transfer{
		Timestamp:    1,
		Priority:     can.PriorityHigh,
		Kind:         can.KindRequest,
		PortID:       42,
		RemoteNodeID: 7,
		TransferID:   3,
		Payload:      []byte("ping me"),
	}
	if err := requester.Push(&req); err != nil {
		t.Fatalf("Push: %v", err)
	}
	feedTX(requester, n.onFrame)

	if len(*sent) == 0 {
		t.Fatal("no response frames sent")
	}
	var got *transport.Transfer
	for i := range *sent {
		tr, ok, err := requester.Accept(&(*sent)[i])
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			got = &tr
		}
	}
	if got == nil {
		t.Fatal("no response reassembled")
	}
	if got.Kind != can.KindResponse || got.PortID != 42 || got.RemoteNodeID != 7 ||
		got.TransferID != 3 || got.Priority != can.PriorityHigh {
		t.Fatalf("response header = %+v", got)
	}
	if !bytes.Equal(got.Payload, []byte("ping me")) {
		t.Fatalf("response payload = %q", got.Payload)
	}
}

func TestEchoIgnoresOtherPorts(t *testing.T) {
	cfg := validConfig()
	cfg.nodeID = 7
	cfg.mtu = 8
	cfg.echoService = 42
	filter := echoFilter{base: transport.AcceptAll(transport.DefaultTransferIDTimeout, 64), port: 42}
	n, sent := testNode(t, cfg, filter)

	requester := transport.New(
		transport.WithNodeID(9),
		transport.WithMTU(8),
		transport.WithFilter(transport.AcceptAll(transport.DefaultTransferIDTimeout, 64)),
	)
	defer requester.Close()
	req := transport.Transfer{
		Timestamp:    1,
		Kind:         can.KindRequest,
		PortID:       43,
		RemoteNodeID: 7,
		TransferID:   0,
		Payload:      []byte{0x01},
	}
	if err := requester.Push(&req); err != nil {
		t.Fatalf("Push: %v", err)
	}
	feedTX(requester, n.onFrame)
	if len(*sent) != 0 {
		t.Fatalf("unexpected frames sent: %d", len(*sent))
	}
}
