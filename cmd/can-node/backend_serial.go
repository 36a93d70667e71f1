package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/metrics"
	"github.com/uavcan-go/canard/internal/slcan"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = slcan.Open

// initSerialBackend opens the SLCAN adapter and launches the RX loop.
// SLCAN carries classic CAN only, so the node should run with --mtu=8.
func initSerialBackend(ctx context.Context, cfg *appConfig, rx chan<- can.Frame, now func() can.Micros, l *slog.Logger, wg *sync.WaitGroup) (sendFunc, func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
	codec := slcan.Codec{}
	var txMu sync.Mutex
	send := func(fr can.Frame) error {
		rec, err := codec.Encode(fr)
		if err != nil {
			return err
		}
		txMu.Lock()
		_, err = sp.Write(rec)
		txMu.Unlock()
		if err != nil {
			metrics.IncError(metrics.ErrSerialWrite)
			return err
		}
		metrics.IncBusTx()
		return nil
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		acc := bytes.NewBuffer(nil)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				codec.DecodeStream(acc, func(fr can.Frame) {
					fr.Timestamp = now()
					deliver(rx, fr)
				})
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					return // device removed or fatal
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // ignore transient EOF
				}
				metrics.IncError(metrics.ErrSerialRead)
				l.Warn("serial_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
	return send, func() { _ = sp.Close() }, nil
}
