package can

// Parameter ranges are inclusive; the lower bound is zero for all.
const (
	SubjectIDMax = 32767
	ServiceIDMax = 511
	NodeIDMax    = 127

	TransferIDBits = 5
	TransferIDMax  = (1 << TransferIDBits) - 1
)

// Priority is one of the eight transfer priority levels. Lower value means
// more urgent; Exceptional wins bus arbitration over everything else.
type Priority uint8

const (
	PriorityExceptional Priority = iota
	PriorityImmediate
	PriorityFast
	PriorityHigh
	PriorityNominal // the default level
	PriorityLow
	PrioritySlow
	PriorityOptional
)

func (p Priority) String() string {
	names := [...]string{
		"exceptional", "immediate", "fast", "high",
		"nominal", "low", "slow", "optional",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "invalid"
}

// Kind distinguishes message publications from service requests/responses.
type Kind uint8

const (
	KindMessage  Kind = iota // multicast, publisher to all subscribers
	KindResponse             // point-to-point, server to client
	KindRequest              // point-to-point, client to server
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindResponse:
		return "response"
	case KindRequest:
		return "request"
	}
	return "invalid"
}

// NodeID identifies a node on the bus. Values above NodeIDMax are treated
// as NodeIDUnset: broadcast destination or anonymous source.
type NodeID uint8

const NodeIDUnset NodeID = 255

// IsSet reports whether the node-ID is a concrete address.
func (n NodeID) IsSet() bool { return n <= NodeIDMax }

// PortID is a subject-ID for messages or a service-ID for services.
type PortID uint16

// Extended identifier layout, messages:
//
//	bits 26..28  priority
//	bit  25      0 (service-not-message)
//	bit  24      anonymous source
//	bit  23      reserved, 0
//	bits 8..22   subject-ID
//	bit  7       reserved, 0
//	bits 0..6    source node-ID
//
// Services:
//
//	bits 26..28  priority
//	bit  25      1
//	bit  24      request-not-response
//	bit  23      reserved, 0
//	bits 14..22  service-ID
//	bits 7..13   destination node-ID
//	bits 0..6    source node-ID
const (
	flagServiceNotMessage  = uint32(1) << 25
	flagAnonymousMessage   = uint32(1) << 24
	flagRequestNotResponse = uint32(1) << 24
	flagReserved23         = uint32(1) << 23
	flagReserved07         = uint32(1) << 7

	offsetPriority  = 26
	offsetSubjectID = 8
	offsetServiceID = 14
	offsetDstNodeID = 7
)

// IDFields is the decoded form of a 29-bit extended identifier.
type IDFields struct {
	Priority    Priority
	Kind        Kind
	PortID      PortID
	Source      NodeID // NodeIDUnset for anonymous message frames
	Destination NodeID // NodeIDUnset for message frames
}

// MessageID encodes a message publication identifier. An unset source marks
// the frame anonymous; the srcPseudo value is then used to populate the
// source field so that interleaved anonymous senders remain distinguishable
// at the bus level.
func MessageID(p Priority, subject PortID, src NodeID, srcPseudo NodeID) uint32 {
	id := uint32(p&7)<<offsetPriority | uint32(subject)<<offsetSubjectID
	if src.IsSet() {
		id |= uint32(src)
	} else {
		id |= flagAnonymousMessage | uint32(srcPseudo&NodeIDMax)
	}
	return id
}

// ServiceID encodes a service request or response identifier.
func ServiceID(p Priority, service PortID, request bool, dst, src NodeID) uint32 {
	id := uint32(p&7)<<offsetPriority | flagServiceNotMessage |
		uint32(service)<<offsetServiceID |
		uint32(dst&NodeIDMax)<<offsetDstNodeID | uint32(src&NodeIDMax)
	if request {
		id |= flagRequestNotResponse
	}
	return id
}

// ParseID decodes a 29-bit extended identifier. It returns ok=false when a
// reserved bit is set, which marks the frame as not belonging to this
// protocol version.
func ParseID(id uint32) (f IDFields, ok bool) {
	if id&flagReserved23 != 0 {
		return f, false
	}
	f.Priority = Priority(id>>offsetPriority) & 7
	f.Source = NodeID(id & NodeIDMax)
	if id&flagServiceNotMessage == 0 {
		if id&flagReserved07 != 0 {
			return f, false
		}
		f.Kind = KindMessage
		f.PortID = PortID(id>>offsetSubjectID) & SubjectIDMax
		f.Destination = NodeIDUnset
		if id&flagAnonymousMessage != 0 {
			f.Source = NodeIDUnset
		}
		return f, true
	}
	if id&flagRequestNotResponse != 0 {
		f.Kind = KindRequest
	} else {
		f.Kind = KindResponse
	}
	f.PortID = PortID(id>>offsetServiceID) & ServiceIDMax
	f.Destination = NodeID(id>>offsetDstNodeID) & NodeIDMax
	return f, true
}
