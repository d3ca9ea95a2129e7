package interfaces

import (
	"context"

	"runtime-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotStore keeps the latest raw snapshot per strategy.
// -----------------------------------------------------------------------------

type ISnapshotStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshot replaces the stored snapshot for snap.StrategyID.
	SaveSnapshot(ctx context.Context, snap models.MSnapshot) error

	// -----------------------------------------------------------------------------

	// LoadLatest returns the stored snapshot, or false when there is none.
	LoadLatest(ctx context.Context, strategyID string) (models.MSnapshot, bool, error)

	// -----------------------------------------------------------------------------

	// ListStrategies returns every strategy id with a stored snapshot, sorted.
	ListStrategies(ctx context.Context) ([]string, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
