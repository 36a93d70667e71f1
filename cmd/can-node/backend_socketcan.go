//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/metrics"
	"github.com/uavcan-go/canard/internal/socketcan"
)

// openSocketCANDevice is a hook for tests (overridden in unit tests).
var openSocketCANDevice = socketcan.Open

// initSocketCANBackend binds the raw CAN socket and launches the RX loop.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, rx chan<- can.Frame, now func() can.Micros, l *slog.Logger, wg *sync.WaitGroup) (sendFunc, func(), error) {
	dev, err := openSocketCANDevice(cfg.canIf)
	if err != nil {
		return nil, func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf)
	send := func(fr can.Frame) error {
		if err := dev.WriteFrame(fr); err != nil {
			metrics.IncError(metrics.ErrBusWrite)
			return err
		}
		metrics.IncBusTx()
		return nil
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var fr can.Frame
			if err := dev.ReadFrame(&fr); err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				metrics.IncError(metrics.ErrBusRead)
				l.Warn("socketcan_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
				continue
			}
			fr.Timestamp = now()
			deliver(rx, fr)
			backoff = rxBackoffMin
		}
	}()
	return send, func() { _ = dev.Close() }, nil
}
