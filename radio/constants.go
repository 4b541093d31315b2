package radio

import "time"

// Timing constants for realistic behavior. Delays are applied only when the
// Air is created with latency enabled; tests run with instant delivery.
const (
	// Connection establishment takes time in real BLE
	MinConnectionDelay = 30 * time.Millisecond
	MaxConnectionDelay = 100 * time.Millisecond

	// Simulated signal strength range reported with scan results
	MinRSSI = -90
	MaxRSSI = -40
)

// eventQueueSize bounds the per-device event channel. Dispatch is serial;
// the buffer only absorbs bursts like a full discovery round.
const eventQueueSize = 128
