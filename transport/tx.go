package transport

import (
	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/crc16"
	"github.com/uavcan-go/canard/internal/metrics"
)

// txItem is one pending outgoing frame. The queue is a singly linked list
// sorted by ascending priority value; insertion after the last item of
// equal or lower urgency preserves FIFO order among equal priorities.
type txItem struct {
	frame    can.Frame
	priority can.Priority
	next     *txItem
}

// Push fragments a transfer into one or more frames and links them into
// the outgoing queue. The transfer-ID and priority are masked to their
// wire widths. On allocator failure the queue is left exactly as it was
// and ErrMemory is returned.
func (ins *Instance) Push(tr *Transfer) error {
	if tr == nil || tr.Timestamp == 0 {
		return ErrInvalidArgument
	}
	pri := tr.Priority & 7
	tid := tr.TransferID & can.TransferIDMax

	var id uint32
	switch tr.Kind {
	case can.KindMessage:
		if tr.PortID > can.SubjectIDMax {
			return ErrInvalidArgument
		}
		if !ins.nodeID.IsSet() {
			// Anonymous transfers are single-frame only: without a source
			// node-ID interleaved senders cannot be reassembled apart.
			if len(tr.Payload)+1 > ins.mtu {
				return ErrInvalidArgument
			}
			pseudo := can.NodeID(crc16.Checksum(tr.Payload) & can.NodeIDMax)
			id = can.MessageID(pri, tr.PortID, can.NodeIDUnset, pseudo)
		} else {
			id = can.MessageID(pri, tr.PortID, ins.nodeID, 0)
		}
	case can.KindRequest, can.KindResponse:
		if tr.PortID > can.ServiceIDMax || !ins.nodeID.IsSet() || !tr.RemoteNodeID.IsSet() {
			return ErrInvalidArgument
		}
		id = can.ServiceID(pri, tr.PortID, tr.Kind == can.KindRequest, tr.RemoteNodeID, ins.nodeID)
	default:
		return ErrInvalidArgument
	}

	var items []*txItem
	var err error
	if len(tr.Payload)+1 <= ins.mtu {
		items, err = ins.singleFrame(tr, id, tid)
	} else {
		items, err = ins.multiFrame(tr, id, tid)
	}
	if err != nil {
		metrics.IncAllocFailure(metrics.WhereTx)
		return err
	}
	for _, it := range items {
		it.priority = pri
		ins.enqueue(it)
	}
	metrics.AddTxQueued(len(items))
	metrics.IncTxTransfer()
	return nil
}

// singleFrame builds the one frame of a transfer that fits the MTU. The
// frame length is rounded up to a valid CAN length with zero padding
// before the tail byte; no transfer CRC is carried.
func (ins *Instance) singleFrame(tr *Transfer, id uint32, tid uint8) ([]*txItem, error) {
	frameLen := can.RoundUpLength(len(tr.Payload) + 1)
	buf := ins.alloc.Allocate(frameLen)
	if buf == nil {
		return nil, ErrMemory
	}
	n := copy(buf, tr.Payload)
	for i := n; i < frameLen-1; i++ {
		buf[i] = 0
	}
	buf[frameLen-1] = tailStart | tailEnd | tailToggle | tid
	return []*txItem{{frame: can.Frame{Timestamp: tr.Timestamp, ID: id, Payload: buf}}}, nil
}

// multiFrame fragments the logical byte stream payload|padding|CRC into
// MTU-sized frames. Zero padding rounds the last frame up to a valid CAN
// length and is included in the CRC, which rides big-endian at the very
// end of the stream (possibly straddling a frame boundary).
func (ins *Instance) multiFrame(tr *Transfer, id uint32, tid uint8) ([]*txItem, error) {
	chunk := ins.mtu - 1
	total := len(tr.Payload) + 2 // payload + CRC, before padding
	nframes := (total + chunk - 1) / chunk
	lastBytes := total - (nframes-1)*chunk
	pad := can.RoundUpLength(lastBytes+1) - lastBytes - 1

	crc := crc16.New().Update(tr.Payload)
	for i := 0; i < pad; i++ {
		crc = crc.UpdateByte(0)
	}
	sum := crc.Sum16()

	padEnd := len(tr.Payload) + pad
	streamByte := func(p int) byte {
		switch {
		case p < len(tr.Payload):
			return tr.Payload[p]
		case p < padEnd:
			return 0
		case p == padEnd:
			return byte(sum >> 8)
		default:
			return byte(sum)
		}
	}

	items := make([]*txItem, 0, nframes)
	release := func() {
		for _, it := range items {
			ins.alloc.Free(it.frame.Payload)
		}
	}
	streamLen := padEnd + 2
	toggle := byte(tailToggle)
	for fi := 0; fi < nframes; fi++ {
		bytes := chunk
		if fi == nframes-1 {
			bytes = streamLen - fi*chunk
		}
		buf := ins.alloc.Allocate(bytes + 1)
		if buf == nil {
			release()
			return nil, ErrMemory
		}
		for i := 0; i < bytes; i++ {
			buf[i] = streamByte(fi*chunk + i)
		}
		tail := toggle | tid
		if fi == 0 {
			tail |= tailStart
		}
		if fi == nframes-1 {
			tail |= tailEnd
		}
		buf[bytes] = tail
		toggle ^= tailToggle
		items = append(items, &txItem{frame: can.Frame{Timestamp: tr.Timestamp, ID: id, Payload: buf}})
	}
	return items, nil
}

// enqueue links the item after the last queued item of equal or higher
// urgency, keeping the queue sorted and FIFO-stable.
func (ins *Instance) enqueue(it *txItem) {
	if ins.txHead == nil || it.priority < ins.txHead.priority {
		it.next = ins.txHead
		ins.txHead = it
		return
	}
	cur := ins.txHead
	for cur.next != nil && cur.next.priority <= it.priority {
		cur = cur.next
	}
	it.next = cur.next
	cur.next = it
}

// Peek returns the highest-priority pending frame without removing it, or
// the zero Frame (zero timestamp) when the queue is empty. The returned
// payload aliases queue storage and is valid until the frame is popped.
func (ins *Instance) Peek() can.Frame {
	if ins.txHead == nil {
		return can.Frame{}
	}
	return ins.txHead.frame
}

// Pop removes and releases the frame last returned by Peek. Call it only
// after the frame has actually been handed to the bus driver: popping an
// untransmitted frame is unrecoverable data loss.
func (ins *Instance) Pop() {
	it := ins.txHead
	if it == nil {
		return
	}
	ins.txHead = it.next
	ins.alloc.Free(it.frame.Payload)
}
