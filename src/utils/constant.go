package utils

import "time"

// -----------------------------------------------------------------------------

// Polling and fan-in defaults shared by the snapshot sources.
const (
	// ClosedMarketPause is how long a market-hours-only poller sleeps once
	// every tracked market is closed.
	ClosedMarketPause = 15 * time.Minute

	// SnapshotQueueSize buffers the channel between sources and the observer.
	SnapshotQueueSize = 256

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout = 5 * time.Second
)

// -----------------------------------------------------------------------------

// PollInterval converts a configured interval, falling back to one second.
func PollInterval(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}
