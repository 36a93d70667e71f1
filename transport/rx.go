package transport

import (
	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/crc16"
	"github.com/uavcan-go/canard/internal/metrics"
)

// sessionKey identifies one reassembly context.
type sessionKey struct {
	source can.NodeID
	port   can.PortID
	kind   can.Kind
}

// rxSession tracks reassembly of successive transfers from one origin.
type rxSession struct {
	buf        []byte // allocator-owned, len == maxPayload
	maxPayload int
	stored     int        // bytes copied into buf
	total      int        // bytes received, including truncated and CRC bytes
	crc        crc16.CRC  // runs over every received byte, truncated or not
	transferID uint8      // current (active) or last completed transfer
	toggle     bool       // expected toggle of the next accepted frame
	active     bool       // a transfer is in progress
	lastFrame  can.Micros // timestamp of the last accepted frame
	timeout    can.Micros
}

// restart discards any in-progress accumulation and begins a new transfer.
func (s *rxSession) restart(tid uint8) {
	s.stored = 0
	s.total = 0
	s.crc = crc16.New()
	s.transferID = tid
	s.toggle = true
	s.active = true
}

func (ins *Instance) destroySession(key sessionKey, s *rxSession) {
	ins.alloc.Free(s.buf)
	delete(ins.sessions, key)
	metrics.SetSessions(len(ins.sessions))
}

// Accept processes one inbound frame. When the frame completes a correctly
// framed transfer, the reassembled Transfer is returned with ok=true. A
// non-nil error is returned only on allocator failure; every protocol
// anomaly — malformed, duplicate, out-of-order, stale, or
// integrity-failing input — is resolved by a silent drop.
func (ins *Instance) Accept(frame *can.Frame) (tr Transfer, ok bool, err error) {
	if frame == nil || frame.Timestamp == 0 || len(frame.Payload) == 0 {
		metrics.IncRxDropped(metrics.DropMalformed)
		return tr, false, nil
	}
	fields, valid := can.ParseID(frame.ID)
	if !valid {
		metrics.IncRxDropped(metrics.DropMalformed)
		return tr, false, nil
	}

	tail := frame.Payload[len(frame.Payload)-1]
	frag := frame.Payload[:len(frame.Payload)-1]
	sot := tail&tailStart != 0
	eot := tail&tailEnd != 0
	toggle := tail&tailToggle != 0
	tid := tail & can.TransferIDMax

	// A start frame always carries toggle=1; anything else is a different
	// protocol version. Checked before any state is disturbed.
	if sot && !toggle {
		metrics.IncRxDropped(metrics.DropMalformed)
		return tr, false, nil
	}

	// Service transfers are point-to-point; only frames addressed to the
	// local node matter.
	if fields.Kind != can.KindMessage {
		if !ins.nodeID.IsSet() || fields.Destination != ins.nodeID {
			metrics.IncRxDropped(metrics.DropDestination)
			return tr, false, nil
		}
	}

	params := ins.filter.Accept(fields.PortID, fields.Kind, fields.Source)
	if params.MaxPayload < 0 {
		params.MaxPayload = 0
	}
	key := sessionKey{source: fields.Source, port: fields.PortID, kind: fields.Kind}
	if params.TransferIDTimeout == 0 {
		if s, exists := ins.sessions[key]; exists {
			ins.destroySession(key, s)
		}
		metrics.IncRxDropped(metrics.DropRejected)
		return tr, false, nil
	}

	if !fields.Source.IsSet() {
		return ins.acceptAnonymous(frame, fields, frag, tail, params)
	}

	s, exists := ins.sessions[key]
	if !exists {
		// Sessions are created lazily, and only a start frame can open a
		// transfer; continuations without one have nothing to join.
		if !sot {
			metrics.IncRxDropped(metrics.DropNoStart)
			return tr, false, nil
		}
		buf := ins.alloc.Allocate(params.MaxPayload)
		if buf == nil && params.MaxPayload > 0 {
			metrics.IncAllocFailure(metrics.WhereRx)
			return tr, false, ErrMemory
		}
		s = &rxSession{buf: buf, maxPayload: params.MaxPayload, timeout: params.TransferIDTimeout}
		s.restart(tid)
		ins.sessions[key] = s
		metrics.SetSessions(len(ins.sessions))
	} else {
		// The timeout may be retightened per-frame; the buffer size is
		// fixed for the session's lifetime.
		s.timeout = params.TransferIDTimeout
		timedOut := frame.Timestamp > s.lastFrame && frame.Timestamp-s.lastFrame > s.timeout
		switch {
		case sot && (timedOut || tid != s.transferID):
			// Resynchronize: a fresh transfer supersedes whatever was in
			// flight.
			s.restart(tid)
		case timedOut && !sot:
			// Stale continuation; the accumulation it belonged to is gone.
			s.active = false
			metrics.IncRxDropped(metrics.DropNoStart)
			return tr, false, nil
		case !s.active:
			metrics.IncRxDropped(metrics.DropNoStart)
			return tr, false, nil
		case sot || tid != s.transferID || toggle != s.toggle:
			// Duplicate or reordered frame; the in-progress accumulation
			// is left untouched.
			metrics.IncRxDropped(metrics.DropDuplicate)
			return tr, false, nil
		}
	}

	// Accept the frame: integrity runs over every byte, storage stops at
	// the session cap (implicit truncation).
	s.crc = s.crc.Update(frag)
	if s.stored < s.maxPayload {
		s.stored += copy(s.buf[s.stored:s.maxPayload], frag)
	}
	s.total += len(frag)
	s.toggle = !s.toggle
	s.lastFrame = frame.Timestamp
	metrics.IncRxAccepted()

	if !eot {
		return tr, false, nil
	}
	s.active = false
	single := sot // accepted SOT means this frame began the transfer
	if !single {
		if s.crc.Sum16() != 0 {
			metrics.IncRxDropped(metrics.DropCRC)
			return tr, false, nil
		}
		// Do not surface CRC bytes that landed in storage.
		if n := s.total - 2; n < s.stored {
			s.stored = n
		}
		if s.stored < 0 {
			s.stored = 0
		}
	}
	metrics.IncRxTransfer()
	return Transfer{
		Timestamp:    frame.Timestamp,
		Priority:     fields.Priority,
		Kind:         fields.Kind,
		PortID:       fields.PortID,
		RemoteNodeID: fields.Source,
		TransferID:   tid,
		Payload:      s.buf[:s.stored],
	}, true, nil
}

// acceptAnonymous emits single-frame anonymous transfers statelessly.
// Multi-frame anonymous transfers cannot exist: with no source node-ID
// there is no way to tell interleaved senders apart.
func (ins *Instance) acceptAnonymous(frame *can.Frame, fields can.IDFields, frag []byte, tail byte, params RxParams) (tr Transfer, ok bool, err error) {
	if tail&tailStart == 0 || tail&tailEnd == 0 {
		metrics.IncRxDropped(metrics.DropAnonymousMulti)
		return tr, false, nil
	}
	n := len(frag)
	if n > params.MaxPayload {
		n = params.MaxPayload
	}
	metrics.IncRxAccepted()
	metrics.IncRxTransfer()
	return Transfer{
		Timestamp:    frame.Timestamp,
		Priority:     fields.Priority,
		Kind:         fields.Kind,
		PortID:       fields.PortID,
		RemoteNodeID: can.NodeIDUnset,
		TransferID:   tail & can.TransferIDMax,
		Payload:      frag[:n],
	}, true, nil
}
