package interfaces

import (
	"context"
	"sync"

	"runtime-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotSource delivers raw runtime snapshots from one upstream.
// -----------------------------------------------------------------------------

type ISnapshotSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// IsRealTime is true for push sources and false for pollers
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// Start begins delivering snapshots.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push snapshots to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- models.MSnapshot, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source without cancelling the shared context.
	Stop() error
}
