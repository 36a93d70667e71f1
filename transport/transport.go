// Package transport implements the UAVCAN/CAN transport engine: it
// fragments application transfers into CAN data frames for transmission
// and reassembles inbound frames back into transfers, enforcing the
// framing, ordering, integrity, and timeout rules of the protocol.
//
// An Instance is single-threaded by contract: the caller serializes all
// operations on it. No operation blocks; the engine keeps no timers and
// relies exclusively on caller-supplied monotonic timestamps. Malformed,
// duplicate, stale, or integrity-failing input is dropped silently — the
// bus is unacknowledged, so benign loss is the only acceptable outcome of
// garbage input, never corrupted state.
package transport

import (
	"github.com/uavcan-go/canard/can"
)

// DefaultTransferIDTimeout is the recommended transfer-ID timeout for new
// input sessions when the application has no specific requirement.
const DefaultTransferIDTimeout can.Micros = 2_000_000

// Tail byte layout: the last payload byte of every frame.
const (
	tailStart  = 0x80 // start-of-transfer
	tailEnd    = 0x40 // end-of-transfer
	tailToggle = 0x20 // alternates per frame, 1 on the start frame
)

// Transfer is one application-level message, request, or response,
// potentially spanning multiple frames. Timestamp is the reception time of
// the final frame for received transfers and the transmission deadline for
// outgoing ones; zero marks an empty transfer.
//
// On Push the payload is owned by the caller for the duration of the call.
// On Accept the emitted payload aliases engine-owned session storage and
// stays valid until the next call that touches the same session; callers
// that retain it longer must copy.
type Transfer struct {
	Timestamp    can.Micros
	Priority     can.Priority
	Kind         can.Kind
	PortID       can.PortID   // subject-ID or service-ID
	RemoteNodeID can.NodeID   // destination on TX (unset = broadcast), source on RX (unset = anonymous)
	TransferID   uint8        // 5 bits, wraps modulo 32
	Payload      []byte
}

// NextTransferID returns the successor of id modulo 32. Applications
// maintain one counter per output session.
func NextTransferID(id uint8) uint8 { return (id + 1) & can.TransferIDMax }

// Instance is the engine state for one logical CAN interface.
type Instance struct {
	nodeID can.NodeID
	mtu    int
	alloc  Allocator
	filter Filter

	txHead   *txItem
	sessions map[sessionKey]*rxSession
}

// Option configures an Instance.
type Option func(*Instance)

// WithNodeID sets the local node-ID. Invalid values are treated as unset
// (anonymous node).
func WithNodeID(id can.NodeID) Option { return func(ins *Instance) { ins.SetNodeID(id) } }

// WithMTU sets the outgoing frame MTU. Invalid values are clamped to the
// nearest valid CAN payload length.
func WithMTU(n int) Option { return func(ins *Instance) { ins.SetMTU(n) } }

// WithAllocator replaces the default heap allocator.
func WithAllocator(a Allocator) Option { return func(ins *Instance) { ins.alloc = a } }

// WithFilter sets the acceptance filter consulted by the RX pipeline.
func WithFilter(f Filter) Option { return func(ins *Instance) { ins.filter = f } }

// New creates an Instance. Defaults: anonymous node, CAN FD MTU, heap
// allocator, and a filter that accepts nothing.
func New(opts ...Option) *Instance {
	ins := &Instance{
		nodeID:   can.NodeIDUnset,
		mtu:      can.MTUFD,
		alloc:    Heap(),
		filter:   rejectAll{},
		sessions: make(map[sessionKey]*rxSession),
	}
	for _, o := range opts {
		o(ins)
	}
	return ins
}

// NodeID returns the local node-ID, NodeIDUnset if anonymous.
func (ins *Instance) NodeID() can.NodeID { return ins.nodeID }

// SetNodeID assigns the local node-ID; values above can.NodeIDMax are
// treated as unset. A node-ID is normally assigned once at startup and
// never changed afterwards.
func (ins *Instance) SetNodeID(id can.NodeID) {
	if !id.IsSet() {
		id = can.NodeIDUnset
	}
	ins.nodeID = id
}

// MTU returns the current outgoing frame MTU.
func (ins *Instance) MTU() int { return ins.mtu }

// SetMTU changes the outgoing frame MTU. The value is clamped to
// [MTUClassic, MTUFD] and rounded down to a valid CAN payload length.
// Inbound frames of any MTU are always accepted regardless.
func (ins *Instance) SetMTU(n int) {
	if n < can.MTUClassic {
		n = can.MTUClassic
	}
	if n > can.MTUFD {
		n = can.MTUFD
	}
	for !can.ValidLength(n) {
		n--
	}
	ins.mtu = n
}

// Close releases all pending TX frames and RX sessions back to the
// allocator. The Instance must not be used afterwards.
func (ins *Instance) Close() {
	for key, s := range ins.sessions {
		ins.destroySession(key, s)
	}
	for ins.txHead != nil {
		ins.Pop()
	}
}
