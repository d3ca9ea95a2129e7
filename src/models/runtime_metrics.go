package models

// -----------------------------------------------------------------------------
// Fixed pipeline phases
// -----------------------------------------------------------------------------

const (
	PhaseSubscription     = "subscription"
	PhaseBatchAggregation = "batch_aggregation"
	PhaseSignalGeneration = "signal_generation"
	PhaseOrderExecution   = "order_execution"
)

// PhaseKeys lists the pipeline phases in display order.
var PhaseKeys = []string{
	PhaseSubscription,
	PhaseBatchAggregation,
	PhaseSignalGeneration,
	PhaseOrderExecution,
}

// -----------------------------------------------------------------------------
// Log records
// -----------------------------------------------------------------------------

// MDetailPair is one key/value line of a log record detail payload.
type MDetailPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MLogRecord is the canonical log entry shared by channels and phases.
type MLogRecord struct {
	ID        string        `json:"id"`
	Level     string        `json:"level"`
	Tone      string        `json:"tone"`
	Timestamp *string       `json:"timestamp"`
	Instant   *int64        `json:"instant"`
	Message   string        `json:"message"`
	Details   []MDetailPair `json:"details"`

	// Raw keeps the source entry so attributes can be re-derived later.
	Raw map[string]any `json:"-"`
	// Sequence is the insertion order used for sort tie-breaks.
	Sequence int `json:"-"`
}

// -----------------------------------------------------------------------------
// Channel reception
// -----------------------------------------------------------------------------

// MChannelMetrics is the reception view of one data channel.
type MChannelMetrics struct {
	IsReceivingData *bool   `json:"is_receiving_data"`
	AwaitingData    bool    `json:"awaiting_data"`
	Label           string  `json:"label"`
	SubscriptionID  *string `json:"subscription_id"`
	Symbol          *string `json:"symbol"`
	LastUpdate      *string `json:"last_update"`
	Reason          *string `json:"reason"`
	Cause           *string `json:"cause"`
	CauseCode       *string `json:"cause_code"`

	RuntimeSeconds    *float64 `json:"runtime_seconds"`
	MessageCount      *float64 `json:"message_count"`
	ThresholdHits     *float64 `json:"threshold_hits"`
	BuySignalCount    *float64 `json:"buy_signal_count"`
	SellSignalCount   *float64 `json:"sell_signal_count"`
	StopLossEnabled   *bool    `json:"stop_loss_enabled"`
	StopLossPrice     *float64 `json:"stop_loss_price"`
	TakeProfitEnabled *bool    `json:"take_profit_enabled"`
	TakeProfitPrice   *float64 `json:"take_profit_price"`

	Logs []MLogRecord `json:"logs"`
}

// -----------------------------------------------------------------------------
// Pipeline phases
// -----------------------------------------------------------------------------

// MPhaseMetric is one labelled, preformatted metric line.
type MPhaseMetric struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// MSignalEvent is a classified trading signal.
type MSignalEvent struct {
	Side      string  `json:"side"`
	Timestamp *string `json:"timestamp"`
}

// MStageSignal is a signal attributed to a named rule stage.
type MStageSignal struct {
	Stage     string  `json:"stage"`
	Side      string  `json:"side"`
	Timestamp *string `json:"timestamp"`
}

// MOrderExecution is the order attributes recovered from one log record.
type MOrderExecution struct {
	ID        string   `json:"id"`
	Side      *string  `json:"side"`
	Symbol    *string  `json:"symbol"`
	Quantity  *float64 `json:"quantity"`
	Status    *string  `json:"status"`
	Timestamp *string  `json:"timestamp"`
}

// MPhaseView is the display model of one pipeline phase.
type MPhaseView struct {
	Key              string         `json:"key"`
	Title            string         `json:"title"`
	Status           *string        `json:"status"`
	StatusDescriptor *string        `json:"status_descriptor"`
	Reason           *string        `json:"reason"`
	Cause            *string        `json:"cause"`
	Tone             string         `json:"tone"`
	Metrics          []MPhaseMetric `json:"metrics"`
	Logs             []MLogRecord   `json:"logs"`

	// signal_generation only
	SignalEvents   []MSignalEvent `json:"signal_events"`
	StageSignals   []MStageSignal `json:"stage_signals"`
	ProcessingLogs []MLogRecord   `json:"processing_logs"`

	// order_execution only
	OrderExecutions []MOrderExecution `json:"order_executions"`
}

// MPipelineMetrics always carries one view per entry of PhaseKeys.
type MPipelineMetrics struct {
	Phases []MPhaseView `json:"phases"`
}

// Phase returns the view for a phase key.
func (p MPipelineMetrics) Phase(key string) (MPhaseView, bool) {
	for _, ph := range p.Phases {
		if ph.Key == key {
			return ph, true
		}
	}
	return MPhaseView{}, false
}
