package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/internal/metrics"
	"github.com/uavcan-go/canard/transport"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("can-node %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	filter, err := loadSubscriptions(cfg.subsFile)
	if err != nil {
		l.Error("subscriptions_error", "error", err)
		os.Exit(1)
	}
	if cfg.echoService >= 0 {
		filter = echoFilter{base: filter, port: can.PortID(cfg.echoService)}
	}
	ins := transport.New(
		transport.WithNodeID(can.NodeID(cfg.nodeID)),
		transport.WithMTU(cfg.mtu),
		transport.WithFilter(filter),
	)
	l.Info("node_up", "node_id", cfg.nodeID, "mtu", ins.MTU(), "backend", cfg.backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	now := nodeClock()
	rx := make(chan can.Frame, rxQueueSize)
	send, cleanup, berr := initBackend(ctx, cfg, rx, now, l, &wg)
	if berr != nil {
		l.Error("backend_init_error", "error", berr)
		os.Exit(1)
	}

	n := &node{cfg: cfg, ins: ins, send: send, l: l, now: now, start: time.Now()}
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.run(ctx, rx)
	}()

	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()

		// Advertise the metrics endpoint once its port is known.
		if cfg.mdnsEnable {
			portNum := 0
			if _, p, err := net.SplitHostPort(cfg.metricsAddr); err == nil {
				if pn, perr := strconv.Atoi(p); perr == nil {
					portNum = pn
				}
			}
			cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
			} else {
				l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
				defer cleanupMDNS()
			}
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	cleanup()
	wg.Wait()
}
