package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/metrics"
)

// sendFunc puts one frame on the bus.
type sendFunc func(can.Frame) error

// initBackend selects the backend, starts its RX loop and returns a frame
// sender and cleanup. Received frames are timestamped with now and pushed
// into rx; when rx is full the frame is dropped, as a saturated hardware
// FIFO would.
func initBackend(ctx context.Context, cfg *appConfig, rx chan<- can.Frame, now func() can.Micros, l *slog.Logger, wg *sync.WaitGroup) (sendFunc, func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, rx, now, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, rx, now, l, wg)
	case "loopback":
		return initLoopbackBackend(rx, now, l)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use socketcan|serial|loopback)", cfg.backend)
	}
}

func deliver(rx chan<- can.Frame, fr can.Frame) {
	metrics.IncBusRx()
	select {
	case rx <- fr:
	default:
		metrics.IncRxDropped(metrics.DropOverflow)
	}
}

// initLoopbackBackend wires TX straight back into RX. Useful for trying the
// node without hardware: with a permissive subscription file the node hears
// its own publications.
func initLoopbackBackend(rx chan<- can.Frame, now func() can.Micros, l *slog.Logger) (sendFunc, func(), error) {
	l.Info("loopback_open")
	send := func(fr can.Frame) error {
		metrics.IncBusTx()
		// The engine recycles TX payloads after Pop, so loop a copy.
		fr.Payload = append([]byte(nil), fr.Payload...)
		fr.Timestamp = now()
		deliver(rx, fr)
		return nil
	}
	return send, func() {}, nil
}
