package main

import "time"

// Backend tuning. Not exposed as flags; the defaults have proven adequate
// on both USB-serial adapters and native interfaces.
const (
	// serialReadBufSize is the chunk size for serial reads. SLCAN records
	// are short, so 4 KiB absorbs bursts without latency cost.
	serialReadBufSize = 4096

	// largeBufferReclaimThreshold bounds the accumulation buffer kept
	// between reads; once drained past this size it is reallocated.
	largeBufferReclaimThreshold = 64 * 1024

	// rxQueueSize is the capacity of the channel between backend RX loops
	// and the node loop. Overflow drops frames, mirroring a full hardware
	// acceptance FIFO.
	rxQueueSize = 512

	// Exponential backoff for read errors.
	rxBackoffMin = 20 * time.Millisecond
	rxBackoffMax = 500 * time.Millisecond
)
