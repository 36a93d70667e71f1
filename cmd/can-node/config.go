package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uavcan-go/canard/can"
)

type appConfig struct {
	backend         string
	canIf           string
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	nodeID          int
	mtu             int
	subject         int
	echoService     int
	publishEvery    time.Duration
	subsFile        string
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	backend := flag.String("backend", "socketcan", "CAN backend: socketcan|serial|loopback")
	canIf := flag.String("can-if", "can0", "SocketCAN interface (when --backend=socketcan)")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device of the SLCAN adapter (when --backend=serial)")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	nodeID := flag.Int("node-id", int(can.NodeIDUnset), "Local node-ID 0..127; 255 runs anonymously")
	mtu := flag.Int("mtu", can.MTUClassic, "Outgoing frame MTU 8..64 (use 64 for CAN FD)")
	subject := flag.Int("heartbeat-subject", 7509, "Subject-ID for the heartbeat publication")
	echoService := flag.Int("echo-service", -1, "Service-ID to answer with echoed request payloads; -1 disables")
	publishEvery := flag.Duration("publish-interval", time.Second, "Heartbeat publication interval; 0 disables")
	subsFile := flag.String("subscriptions", "", "TOML file listing the ports to subscribe to; empty accepts everything")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement of the metrics endpoint")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default can-node-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.backend = *backend
	cfg.canIf = *canIf
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.nodeID = *nodeID
	cfg.mtu = *mtu
	cfg.subject = *subject
	cfg.echoService = *echoService
	cfg.publishEvery = *publishEvery
	cfg.subsFile = *subsFile
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners – only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.backend {
	case "socketcan", "serial", "loopback":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if !(c.nodeID >= 0 && c.nodeID <= int(can.NodeIDMax)) && c.nodeID != int(can.NodeIDUnset) {
		return fmt.Errorf("node-id must be 0..%d or %d (got %d)", can.NodeIDMax, can.NodeIDUnset, c.nodeID)
	}
	if c.mtu < can.MTUClassic || c.mtu > can.MTUFD {
		return fmt.Errorf("mtu must be %d..%d (got %d)", can.MTUClassic, can.MTUFD, c.mtu)
	}
	if c.subject < 0 || c.subject > int(can.SubjectIDMax) {
		return fmt.Errorf("heartbeat-subject must be 0..%d (got %d)", can.SubjectIDMax, c.subject)
	}
	if c.echoService > int(can.ServiceIDMax) {
		return fmt.Errorf("echo-service must be -1..%d (got %d)", can.ServiceIDMax, c.echoService)
	}
	if c.echoService >= 0 && c.nodeID == int(can.NodeIDUnset) {
		return errors.New("echo-service requires a node-id (services cannot run anonymously)")
	}
	if c.publishEvery < 0 {
		return fmt.Errorf("publish-interval must be >= 0")
	}
	if c.serialDev == "" && c.backend == "serial" {
		return errors.New("serial backend needs a device path")
	}
	return nil
}

// applyEnvOverrides maps CAN_NODE_* environment variables to config fields
// unless a corresponding flag was explicitly set. Boolean & numeric parsing is lax:
// empty values ignored. Duration accepts Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	str := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	num := func(flagName, env string, dst *int, min int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= min {
				*dst = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	dur := func(flagName, env string, dst *time.Duration, min time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= min {
				*dst = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}

	str("backend", "CAN_NODE_BACKEND", &c.backend)
	str("can-if", "CAN_NODE_IF", &c.canIf)
	str("serial", "CAN_NODE_SERIAL", &c.serialDev)
	num("baud", "CAN_NODE_BAUD", &c.baud, 1)
	dur("serial-read-timeout", "CAN_NODE_SERIAL_READ_TIMEOUT", &c.serialReadTO, time.Nanosecond)
	num("node-id", "CAN_NODE_ID", &c.nodeID, 0)
	num("mtu", "CAN_NODE_MTU", &c.mtu, 0)
	num("heartbeat-subject", "CAN_NODE_HEARTBEAT_SUBJECT", &c.subject, 0)
	num("echo-service", "CAN_NODE_ECHO_SERVICE", &c.echoService, -1)
	dur("publish-interval", "CAN_NODE_PUBLISH_INTERVAL", &c.publishEvery, 0)
	str("subscriptions", "CAN_NODE_SUBSCRIPTIONS", &c.subsFile)
	str("log-format", "CAN_NODE_LOG_FORMAT", &c.logFormat)
	str("log-level", "CAN_NODE_LOG_LEVEL", &c.logLevel)
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CAN_NODE_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	dur("log-metrics-interval", "CAN_NODE_LOG_METRICS_INTERVAL", &c.logMetricsEvery, 0)
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CAN_NODE_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	str("mdns-name", "CAN_NODE_MDNS_NAME", &c.mdnsName)
	return firstErr
}
