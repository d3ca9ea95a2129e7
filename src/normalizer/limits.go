package normalizer

// Output windows. Every list handed to the presentation layer is capped.
const (
	MaxLogEntries            = 20
	MaxProcessingEntries     = 20
	MaxDisplayProcessingLogs = 10
	MaxOrderExecutions       = 10
	MaxSignalEvents          = 5
	MaxStageSignals          = 3
)
