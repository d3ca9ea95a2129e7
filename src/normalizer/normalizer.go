// Package normalizer turns loosely shaped runtime snapshots into stable
// channel and pipeline view-models. Every call is independent: nothing is
// cached between calls and the input is never modified.
package normalizer

import (
	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

// Normalizer carries the read-only display settings.
type Normalizer struct {
	settings core.Settings
}

// NewNormalizer creates a normalizer for the given display settings.
func NewNormalizer(settings core.Settings) *Normalizer {
	return &Normalizer{settings: settings}
}

// build is the call-local state of one normalization.
type build struct {
	formatter *core.Formatter
	resolver  core.TimestampResolver
}

func (n *Normalizer) newBuild() *build {
	f := n.settings.NewFormatter()
	return &build{formatter: f, resolver: f.Resolver()}
}

// -----------------------------------------------------------------------------

// BuildChannelMetrics returns one reception view per detected channel.
func (n *Normalizer) BuildChannelMetrics(snapshot any) []models.MChannelMetrics {
	root, _ := core.AsMap(snapshot)
	return n.newBuild().channelMetrics(root)
}

// BuildPipelineMetrics always returns one view per fixed phase.
func (n *Normalizer) BuildPipelineMetrics(snapshot any) models.MPipelineMetrics {
	root, _ := core.AsMap(snapshot)
	return n.newBuild().pipelineMetrics(root)
}

// Normalize builds both view-models from one snapshot.
func (n *Normalizer) Normalize(snapshot any) ([]models.MChannelMetrics, models.MPipelineMetrics) {
	root, _ := core.AsMap(snapshot)
	b := n.newBuild()
	return b.channelMetrics(root), b.pipelineMetrics(root)
}

// GatherLogs normalizes, deduplicates and sorts log entries from any number
// of containers.
func (n *Normalizer) GatherLogs(sources ...any) []models.MLogRecord {
	return gatherLogs(n.settings.Resolver, sources...)
}
