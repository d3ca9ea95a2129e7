package models

import "time"

// -----------------------------------------------------------------------------
// Snapshot transport record
// -----------------------------------------------------------------------------

// MSnapshot is one raw runtime snapshot as delivered by a source. Payload is
// the decoded, untyped record tree and is never mutated after delivery.
type MSnapshot struct {
	StrategyID string    `json:"strategy_id"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    any       `json:"payload"`
}

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

// MRuntimeView is everything the dashboard renders for one strategy.
type MRuntimeView struct {
	Type         string            `json:"type"` // "INITIAL" or "UPDATE"
	StrategyID   string            `json:"strategy_id"`
	Source       string            `json:"source"`
	Channels     []MChannelMetrics `json:"channels"`
	Pipeline     MPipelineMetrics  `json:"pipeline"`
	UpdatedAt    int64             `json:"updated_at"`
	BuildSeconds float64           `json:"build_seconds"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command    string   `json:"command"`
	Strategies []string `json:"strategies"`
}

// -----------------------------------------------------------------------------
// Strategy listing entry
// -----------------------------------------------------------------------------

type MStrategySummary struct {
	StrategyID        string `json:"strategy_id"`
	Source            string `json:"source"`
	UpdatedAt         int64  `json:"updated_at"`
	Channels          int    `json:"channels"`
	ReceivingChannels int    `json:"receiving_channels"`
}
