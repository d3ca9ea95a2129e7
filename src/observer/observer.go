// Package observer runs the snapshot loop: every snapshot is stored, turned
// into a runtime view and handed to the data exchanger.
package observer

import (
	"context"
	"sync/atomic"
	"time"

	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/normalizer"
)

// maxConsecutiveStoreErrors marks the loop unhealthy.
const maxConsecutiveStoreErrors = 5

type Observer struct {
	Normalizer *normalizer.Normalizer
	Store      interfaces.ISnapshotStore
	Exchanger  interfaces.IDataExchanger
	Logger     *logger.Logger
	Now        func() time.Time

	received       atomic.Int64
	built          atomic.Int64
	storeErrors    atomic.Int64
	storeFailures  atomic.Int64 // consecutive
	lastBuildNanos atomic.Int64
	lastSnapshotAt atomic.Int64
}

// -----------------------------------------------------------------------------

// NewObserver wires the loop. A nil store disables persistence and replay.
func NewObserver(norm *normalizer.Normalizer, store interfaces.ISnapshotStore, exchanger interfaces.IDataExchanger, log *logger.Logger) *Observer {
	return &Observer{
		Normalizer: norm,
		Store:      store,
		Exchanger:  exchanger,
		Logger:     log,
		Now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// BuildView normalizes one snapshot. It never fails: a malformed payload
// yields empty but well-formed view-models.
func (o *Observer) BuildView(snap models.MSnapshot) models.MRuntimeView {
	start := o.Now()
	channels, pipeline := o.Normalizer.Normalize(snap.Payload)
	elapsed := o.Now().Sub(start)
	o.lastBuildNanos.Store(int64(elapsed))

	updatedAt := snap.ReceivedAt
	if updatedAt.IsZero() {
		updatedAt = start
	}
	return models.MRuntimeView{
		Type:         "UPDATE",
		StrategyID:   snap.StrategyID,
		Source:       snap.Source,
		Channels:     channels,
		Pipeline:     pipeline,
		UpdatedAt:    updatedAt.Unix(),
		BuildSeconds: elapsed.Seconds(),
	}
}

// -----------------------------------------------------------------------------

// Process stores the snapshot, builds its view and broadcasts it. A store
// failure is logged and does not hold back the view.
func (o *Observer) Process(ctx context.Context, snap models.MSnapshot) models.MRuntimeView {
	o.received.Add(1)
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = o.Now().UTC()
	}
	o.lastSnapshotAt.Store(snap.ReceivedAt.Unix())

	if o.Store != nil {
		if err := o.Store.SaveSnapshot(ctx, snap); err != nil {
			o.storeErrors.Add(1)
			o.storeFailures.Add(1)
			o.Logger.Error("Failed to persist snapshot for %s: %v", snap.StrategyID, err)
		} else {
			o.storeFailures.Store(0)
		}
	}

	view := o.BuildView(snap)
	o.built.Add(1)
	if o.Exchanger != nil {
		o.Exchanger.Broadcast(view)
	}
	o.Logger.Debug("Built view for %s from %s in %.4fs", snap.StrategyID, snap.Source, view.BuildSeconds)
	return view
}

// -----------------------------------------------------------------------------

// Replay rebuilds the views of every stored snapshot without broadcasting them.
func (o *Observer) Replay(ctx context.Context) (int, error) {
	if o.Store == nil {
		return 0, nil
	}

	ids, err := o.Store.ListStrategies(ctx)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, id := range ids {
		snap, ok, err := o.Store.LoadLatest(ctx, id)
		if err != nil {
			o.Logger.Warning("Skipping stored snapshot for %s: %v", id, err)
			continue
		}
		if !ok {
			continue
		}
		view := o.BuildView(snap)
		view.Type = "INITIAL"
		if o.Exchanger != nil {
			o.Exchanger.UpdateView(view)
		}
		replayed++
	}
	o.Logger.Info("Replayed %d stored snapshots", replayed)
	return replayed, nil
}

// -----------------------------------------------------------------------------

// Run consumes snapshots until ctx is done or the channel is closed.
func (o *Observer) Run(ctx context.Context, in <-chan models.MSnapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-in:
			if !ok {
				return nil
			}
			o.Process(ctx, snap)
		}
	}
}

// -----------------------------------------------------------------------------

// Metrics reports loop throughput for the health endpoints.
func (o *Observer) Metrics() models.MProcessingMetrics {
	return models.MProcessingMetrics{
		SnapshotsReceived: o.received.Load(),
		ViewsBuilt:        o.built.Load(),
		StoreErrors:       o.storeErrors.Load(),
		LastBuildSeconds:  time.Duration(o.lastBuildNanos.Load()).Seconds(),
		LastSnapshotAt:    o.lastSnapshotAt.Load(),
	}
}

// Healthy is false after repeated consecutive store failures.
func (o *Observer) Healthy() bool {
	return o.storeFailures.Load() < maxConsecutiveStoreErrors
}
