package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/uavcan-go/canard/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"bus_rx", snap.BusRx,
					"bus_tx", snap.BusTx,
					"tx_frames", snap.TxQueued,
					"tx_transfers", snap.TxTransfers,
					"rx_frames", snap.RxAccepted,
					"rx_dropped", snap.RxDropped,
					"rx_transfers", snap.RxTransfers,
					"sessions", snap.Sessions,
					"alloc_failures", snap.AllocFail,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
