package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/transport"
)

// Subscription files are TOML:
//
//	[[subscription]]
//	kind        = "message"   # message | request | response
//	port        = 7509
//	timeout     = "2s"        # transfer-ID timeout, optional
//	max-payload = 64          # bytes kept per transfer, optional
type subsFile struct {
	Subscription []subEntry `toml:"subscription"`
}

type subEntry struct {
	Kind       string   `toml:"kind"`
	Port       int      `toml:"port"`
	Timeout    duration `toml:"timeout"`
	MaxPayload int      `toml:"max-payload"`
}

// duration lets TOML carry Go duration strings.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

const defaultSubMaxPayload = 64

type subKey struct {
	kind can.Kind
	port can.PortID
}

// portFilter accepts exactly the ports listed in the subscription file.
type portFilter struct {
	params map[subKey]transport.RxParams
}

func (f *portFilter) Accept(port can.PortID, kind can.Kind, _ can.NodeID) transport.RxParams {
	return f.params[subKey{kind: kind, port: port}]
}

// Add registers one port. Later entries for the same port win.
func (f *portFilter) Add(kind can.Kind, port can.PortID, p transport.RxParams) {
	f.params[subKey{kind: kind, port: port}] = p
}

// echoFilter layers acceptance of echo requests over the configured
// subscriptions, so the echo service works without a subscription entry.
type echoFilter struct {
	base transport.Filter
	port can.PortID
}

func (f echoFilter) Accept(port can.PortID, kind can.Kind, src can.NodeID) transport.RxParams {
	if kind == can.KindRequest && port == f.port {
		return transport.RxParams{
			TransferIDTimeout: transport.DefaultTransferIDTimeout,
			MaxPayload:        defaultSubMaxPayload,
		}
	}
	return f.base.Accept(port, kind, src)
}

func parseKind(s string) (can.Kind, error) {
	switch s {
	case "message", "":
		return can.KindMessage, nil
	case "request":
		return can.KindRequest, nil
	case "response":
		return can.KindResponse, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (use message|request|response)", s)
	}
}

// loadSubscriptions builds the acceptance filter from a TOML file. An empty
// path yields a promiscuous filter that reassembles every port with default
// limits; handy on the bench, not recommended on a busy bus.
func loadSubscriptions(path string) (transport.Filter, error) {
	if path == "" {
		return transport.AcceptAll(transport.DefaultTransferIDTimeout, defaultSubMaxPayload), nil
	}
	f := &portFilter{params: make(map[subKey]transport.RxParams)}
	var file subsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("subscriptions %s: %w", path, err)
	}
	for i, e := range file.Subscription {
		kind, err := parseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", i, err)
		}
		max := can.SubjectIDMax
		if kind != can.KindMessage {
			max = can.ServiceIDMax
		}
		if e.Port < 0 || e.Port > int(max) {
			return nil, fmt.Errorf("subscription %d: port %d out of range 0..%d", i, e.Port, max)
		}
		p := transport.RxParams{
			TransferIDTimeout: can.Micros(time.Duration(e.Timeout).Microseconds()),
			MaxPayload:        e.MaxPayload,
		}
		if p.TransferIDTimeout == 0 {
			p.TransferIDTimeout = transport.DefaultTransferIDTimeout
		}
		if p.MaxPayload <= 0 {
			p.MaxPayload = defaultSubMaxPayload
		}
		f.Add(kind, can.PortID(e.Port), p)
	}
	return f, nil
}
