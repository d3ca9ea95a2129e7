package models

// MProcessingMetrics reports the snapshot loop throughput.
type MProcessingMetrics struct {
	SnapshotsReceived int64   `json:"snapshots_received"`
	ViewsBuilt        int64   `json:"views_built"`
	StoreErrors       int64   `json:"store_errors"`
	LastBuildSeconds  float64 `json:"last_build_seconds"`
	LastSnapshotAt    int64   `json:"last_snapshot_at"`
}
