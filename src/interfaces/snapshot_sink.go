package interfaces

import (
	"context"

	"runtime-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotSink accepts snapshots pushed by clients (REST ingest).
// -----------------------------------------------------------------------------

type ISnapshotSink interface {
	Submit(ctx context.Context, snap models.MSnapshot) error
}
