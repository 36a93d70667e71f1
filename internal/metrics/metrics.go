package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uavcan-go/canard/internal/logging"
)

// Prometheus collectors
var (
	TxFramesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_tx_frames_queued_total",
		Help: "Total CAN frames emitted by the TX pipeline into the outgoing queue.",
	})
	TxTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_tx_transfers_total",
		Help: "Total transfers accepted by the TX pipeline.",
	})
	RxFramesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_rx_frames_accepted_total",
		Help: "Total inbound CAN frames accepted into reassembly.",
	})
	RxFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canard_rx_frames_dropped_total",
		Help: "Total inbound CAN frames silently dropped, by reason.",
	}, []string{"reason"})
	RxTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_rx_transfers_total",
		Help: "Total completed transfers emitted by the RX pipeline.",
	})
	RxSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canard_rx_sessions_active",
		Help: "Current number of live reassembly sessions.",
	})
	AllocFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canard_alloc_failures_total",
		Help: "Total allocator failures, by pipeline.",
	}, []string{"where"})
	BusRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_bus_rx_frames_total",
		Help: "Total CAN frames read from the bus backend.",
	})
	BusTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canard_bus_tx_frames_total",
		Help: "Total CAN frames written to the bus backend.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canard_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "canard_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Drop reason label values (stable, to bound cardinality).
const (
	DropMalformed      = "malformed"
	DropRejected       = "rejected"
	DropDestination    = "wrong_destination"
	DropAnonymousMulti = "anonymous_multiframe"
	DropNoStart        = "no_start"
	DropDuplicate      = "duplicate"
	DropCRC            = "crc_mismatch"
	DropOverflow       = "queue_overflow"
)

// Allocation failure / error label values.
const (
	WhereTx = "tx"
	WhereRx = "rx"

	ErrBusRead     = "bus_read"
	ErrBusWrite    = "bus_write"
	ErrSerialRead  = "serial_read"
	ErrSerialWrite = "serial_write"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for periodic logging without scraping Prometheus
// in-process.
var (
	localTxQueued    uint64
	localTxTransfers uint64
	localRxAccepted  uint64
	localRxDropped   uint64
	localRxTransfers uint64
	localSessions    uint64
	localAllocFail   uint64
	localBusRx       uint64
	localBusTx       uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	TxQueued    uint64
	TxTransfers uint64
	RxAccepted  uint64
	RxDropped   uint64 // sum across drop reasons
	RxTransfers uint64
	Sessions    uint64
	AllocFail   uint64
	BusRx       uint64
	BusTx       uint64
	Errors      uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		TxQueued:    atomic.LoadUint64(&localTxQueued),
		TxTransfers: atomic.LoadUint64(&localTxTransfers),
		RxAccepted:  atomic.LoadUint64(&localRxAccepted),
		RxDropped:   atomic.LoadUint64(&localRxDropped),
		RxTransfers: atomic.LoadUint64(&localRxTransfers),
		Sessions:    atomic.LoadUint64(&localSessions),
		AllocFail:   atomic.LoadUint64(&localAllocFail),
		BusRx:       atomic.LoadUint64(&localBusRx),
		BusTx:       atomic.LoadUint64(&localBusTx),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.
func AddTxQueued(n int) {
	TxFramesQueued.Add(float64(n))
	atomic.AddUint64(&localTxQueued, uint64(n))
}

func IncTxTransfer() {
	TxTransfers.Inc()
	atomic.AddUint64(&localTxTransfers, 1)
}

func IncRxAccepted() {
	RxFramesAccepted.Inc()
	atomic.AddUint64(&localRxAccepted, 1)
}

func IncRxDropped(reason string) {
	RxFramesDropped.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localRxDropped, 1)
}

func IncRxTransfer() {
	RxTransfers.Inc()
	atomic.AddUint64(&localRxTransfers, 1)
}

func SetSessions(n int) {
	RxSessionsActive.Set(float64(n))
	atomic.StoreUint64(&localSessions, uint64(n))
}

func IncAllocFailure(where string) {
	AllocFailures.WithLabelValues(where).Inc()
	atomic.AddUint64(&localAllocFail, 1)
}

func IncBusRx() {
	BusRxFrames.Inc()
	atomic.AddUint64(&localBusRx, 1)
}

func IncBusTx() {
	BusTxFrames.Inc()
	atomic.AddUint64(&localBusTx, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (call once at startup).
// Common label series are pre-registered so the first event does not pay
// the registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		DropMalformed, DropRejected, DropDestination,
		DropAnonymousMulti, DropNoStart, DropDuplicate, DropCRC,
	} {
		RxFramesDropped.WithLabelValues(lbl).Add(0)
	}
	for _, lbl := range []string{ErrBusRead, ErrBusWrite, ErrSerialRead, ErrSerialWrite} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers the function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // not set yet: treat as ready so the endpoint doesn't flap
		return true
	}
	return fn()
}
