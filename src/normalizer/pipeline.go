package normalizer

import (
	"strings"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

var (
	phaseStatusKeys  = []string{"status", "state", "phase_status", "phaseStatus"}
	phaseToneKeys    = []string{"tone", "status_tone", "statusTone"}
	signalSourceKeys = []string{"signals", "signal_events", "signalEvents", "signal_log", "signalLog"}
	stageSignalKeys  = []string{"stage_signals", "stageSignals"}
	orderSourceKeys  = []string{"orders", "executions", "order_executions", "orderExecutions", "fills", "trades"}
)

const descriptorSeparator = " · "

// -----------------------------------------------------------------------------

func (b *build) pipelineMetrics(root map[string]any) models.MPipelineMetrics {
	phases := make([]models.MPhaseView, 0, len(models.PhaseKeys))
	for _, key := range models.PhaseKeys {
		phases = append(phases, b.phase(root, key))
	}
	return models.MPipelineMetrics{Phases: phases}
}

func emptyPhase(key string) models.MPhaseView {
	return models.MPhaseView{
		Key:             key,
		Title:           phaseTitles[key],
		Tone:            string(core.ToneInfo),
		Metrics:         []models.MPhaseMetric{},
		Logs:            []models.MLogRecord{},
		SignalEvents:    []models.MSignalEvent{},
		StageSignals:    []models.MStageSignal{},
		ProcessingLogs:  []models.MLogRecord{},
		OrderExecutions: []models.MOrderExecution{},
	}
}

func (b *build) phase(root map[string]any, key string) models.MPhaseView {
	view := emptyPhase(key)
	if root == nil {
		return view
	}

	record, found := FindPhase(root, PhaseVariants[key])
	summary, _ := core.AsMap(root["summary"])
	processing := processingRecords([]map[string]any{root, summary, record}, key, b.formatter, MaxProcessingEntries)

	var native []models.MLogRecord
	if found {
		b.describe(&view, record)
		view.Metrics = ExtractPhaseMetrics(record, b.formatter)
		native = gatherLogs(b.resolver, core.Field(record, logContainerKeys...)...)
	}
	view.Logs = combineLogs(MaxLogEntries, processing, native)

	switch key {
	case models.PhaseSignalGeneration:
		view.ProcessingLogs = TrimLogs(processing, MaxDisplayProcessingLogs)
		if found {
			sources := append(core.Field(record, signalSourceKeys...), core.Field(record, logContainerKeys...)...)
			view.SignalEvents = signalEvents(gatherLogs(b.resolver, sources...), MaxSignalEvents)
			staged := gatherLogs(b.resolver, core.Field(record, stageSignalKeys...)...)
			view.StageSignals = stageSignals(MaxStageSignals, staged, processing)
		} else {
			view.StageSignals = stageSignals(MaxStageSignals, processing)
		}
	case models.PhaseOrderExecution:
		if found {
			sources := append(core.Field(record, orderSourceKeys...), core.Field(record, logContainerKeys...)...)
			view.OrderExecutions = orderExecutions(gatherLogs(b.resolver, sources...), MaxOrderExecutions)
		}
	}
	return view
}

// describe fills status, reason, cause and tone from a merged phase record.
func (b *build) describe(view *models.MPhaseView, record map[string]any) {
	status, hasStatus := core.PickString(core.Field(record, phaseStatusKeys...)...)
	if hasStatus {
		status = strings.ToUpper(status)
		view.Status = &status
	}
	view.Reason = optString(core.Field(record, reasonKeys...))
	view.Cause = optString(core.Field(record, causeKeys...))
	causeCode := optString(core.Field(record, causeCodeKeys...))

	var parts []string
	for _, p := range []*string{view.Reason, causeCode} {
		if p == nil {
			continue
		}
		dup := false
		for _, existing := range parts {
			if strings.EqualFold(existing, *p) {
				dup = true
				break
			}
		}
		if !dup {
			parts = append(parts, *p)
		}
	}
	if len(parts) > 0 {
		descriptor := strings.Join(parts, descriptorSeparator)
		view.StatusDescriptor = &descriptor
	}

	view.Tone = string(phaseTone(record, status, view.Cause, causeCode))
}

// phaseTone prefers an explicit tone, then the status wording, then failure
// vocabulary in the cause fields.
func phaseTone(record map[string]any, status string, cause, causeCode *string) core.Tone {
	if text, ok := core.PickString(core.Field(record, phaseToneKeys...)...); ok {
		if tone, ok := core.ClassifyTone(text); ok {
			return tone
		}
	}
	if tone, ok := core.ClassifyTone(status); ok {
		return tone
	}
	if core.IsFailureText(status) {
		return core.ToneError
	}
	for _, p := range []*string{cause, causeCode} {
		if p != nil && core.IsFailureText(*p) {
			return core.ToneWarning
		}
	}
	return core.ToneInfo
}
