package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/dsdl"
	"github.com/uavcan-go/canard/transport"
)

// Heartbeat wire layout, 7 bytes:
//
//	uptime  uint32  seconds since start
//	health  uint2
//	mode    uint3
//	vendor  uint19  vendor-specific status code
const (
	heartbeatBytes = 7

	healthNominal   = 0
	modeOperational = 0
)

func encodeHeartbeat(uptimeSec uint32, health, mode uint8, vendor uint32) []byte {
	buf := make([]byte, heartbeatBytes)
	dsdl.PutUint(buf, 0, 32, uint64(uptimeSec))
	dsdl.PutUint(buf, 32, 2, uint64(health))
	dsdl.PutUint(buf, 34, 3, uint64(mode))
	dsdl.PutUint(buf, 37, 19, uint64(vendor))
	return buf
}

// node owns the transport instance. Everything that touches the instance
// runs on the single run goroutine; backends only feed the rx channel.
type node struct {
	cfg   *appConfig
	ins   *transport.Instance
	send  sendFunc
	l     *slog.Logger
	now   func() can.Micros
	hbTID uint8
	start time.Time
}

// nodeClock returns a monotonic microsecond clock that never reads zero, so
// frame timestamps always satisfy the engine's non-zero requirement.
func nodeClock() func() can.Micros {
	start := time.Now()
	return func() can.Micros {
		return can.Micros(time.Since(start).Microseconds()) + 1
	}
}

// run is the node loop: reassemble inbound frames, publish the heartbeat,
// answer echo requests, and drain the TX queue to the bus.
func (n *node) run(ctx context.Context, rx <-chan can.Frame) {
	var tick <-chan time.Time
	if n.cfg.publishEvery > 0 {
		t := time.NewTicker(n.cfg.publishEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			n.ins.Close()
			return
		case fr := <-rx:
			n.onFrame(&fr)
		case <-tick:
			n.publishHeartbeat()
		}
	}
}

func (n *node) onFrame(fr *can.Frame) {
	tr, ok, err := n.ins.Accept(fr)
	if err != nil {
		n.l.Warn("rx_error", "error", err)
		return
	}
	if !ok {
		return
	}
	n.l.Debug("transfer_received",
		"kind", tr.Kind.String(),
		"port", uint16(tr.PortID),
		"from", uint8(tr.RemoteNodeID),
		"tid", tr.TransferID,
		"bytes", len(tr.Payload),
	)
	if tr.Kind == can.KindRequest && n.cfg.echoService >= 0 && tr.PortID == can.PortID(n.cfg.echoService) {
		n.respondEcho(&tr)
	}
}

// respondEcho answers a request with its own payload. The response reuses
// the request's transfer-ID, which is how callers pair the two.
func (n *node) respondEcho(req *transport.Transfer) {
	// The request payload aliases session storage, which the engine may
	// reuse while the response sits in the TX queue.
	payload := append([]byte(nil), req.Payload...)
	resp := transport.Transfer{
		Timestamp:    n.now(),
		Priority:     req.Priority,
		Kind:         can.KindResponse,
		PortID:       req.PortID,
		RemoteNodeID: req.RemoteNodeID,
		TransferID:   req.TransferID,
		Payload:      payload,
	}
	if err := n.ins.Push(&resp); err != nil {
		n.l.Warn("echo_push_error", "error", err)
		return
	}
	n.drain()
}

func (n *node) publishHeartbeat() {
	uptime := uint32(time.Since(n.start).Seconds())
	tr := transport.Transfer{
		Timestamp:  n.now(),
		Priority:   can.PriorityNominal,
		Kind:       can.KindMessage,
		PortID:     can.PortID(n.cfg.subject),
		TransferID: n.hbTID,
		Payload:    encodeHeartbeat(uptime, healthNominal, modeOperational, 0),
	}
	if err := n.ins.Push(&tr); err != nil {
		n.l.Warn("heartbeat_push_error", "error", err)
		return
	}
	n.hbTID = transport.NextTransferID(n.hbTID)
	n.drain()
}

// drain moves every queued frame to the bus. Write failures drop the frame;
// the bus is lossy and the backend already counted the error.
func (n *node) drain() {
	for {
		fr := n.ins.Peek()
		if fr.IsZero() {
			return
		}
		if err := n.send(fr); err != nil {
			n.l.Warn("bus_write_error", "error", err)
		}
		n.ins.Pop()
	}
}
