package transport

import "github.com/uavcan-go/canard/can"

// RxParams is the acceptance decision for one (port, kind, source) triple.
type RxParams struct {
	// TransferIDTimeout bounds how stale a session may become before a new
	// start-of-transfer resynchronizes it. Zero means "never accept": all
	// frames for the triple are silently dropped.
	TransferIDTimeout can.Micros

	// MaxPayload caps the stored transfer payload. Bytes beyond it are
	// counted for the integrity check but discarded (implicit truncation).
	// Zero accepts the transfer while discarding its payload entirely.
	MaxPayload int
}

// Filter decides whether transfers from a given origin should be received
// and with what bounds. It is consulted when a new (port, kind, source)
// triple is first observed and may be consulted again on any frame; a
// later rejection tears the existing session down.
type Filter interface {
	Accept(port can.PortID, kind can.Kind, source can.NodeID) RxParams
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(port can.PortID, kind can.Kind, source can.NodeID) RxParams

func (f FilterFunc) Accept(port can.PortID, kind can.Kind, source can.NodeID) RxParams {
	return f(port, kind, source)
}

// AcceptAll returns a Filter admitting every triple with the same timeout
// and payload bound. Intended for tests and promiscuous tooling.
func AcceptAll(timeout can.Micros, maxPayload int) Filter {
	return FilterFunc(func(can.PortID, can.Kind, can.NodeID) RxParams {
		return RxParams{TransferIDTimeout: timeout, MaxPayload: maxPayload}
	})
}

// rejectAll is the default filter: a zero timeout for everything.
type rejectAll struct{}

func (rejectAll) Accept(can.PortID, can.Kind, can.NodeID) RxParams { return RxParams{} }
