package normalizer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(core.DefaultSettings())
}

func mustPhase(t *testing.T, p models.MPipelineMetrics, key string) models.MPhaseView {
	t.Helper()
	view, ok := p.Phase(key)
	if !ok {
		t.Fatalf("phase %q missing from %d phases", key, len(p.Phases))
	}
	return view
}

// -----------------------------------------------------------------------------

func TestPipelineAlwaysHasFourPhases(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	inputs := []any{
		nil,
		"garbage",
		42,
		map[string]any{},
		map[string]any{"summary": "oops", "phases": 5, "workflow": []any{1, "two"}},
		map[string]any{"summary": map[string]any{"phases": map[string]any{"subscription": "not an object"}}},
	}
	for i, in := range inputs {
		p := n.BuildPipelineMetrics(in)
		if len(p.Phases) != 4 {
			t.Fatalf("input %d: got %d phases", i, len(p.Phases))
		}
		for j, view := range p.Phases {
			if view.Key != models.PhaseKeys[j] {
				t.Fatalf("input %d: phase %d key = %q", i, j, view.Key)
			}
			if view.Metrics == nil || len(view.Metrics) != 0 || view.Logs == nil || len(view.Logs) != 0 {
				t.Fatalf("input %d: phase %q should have empty metrics and logs, got %+v", i, view.Key, view)
			}
		}
	}
}

func TestScenarioFailedSubscriptionDowngradesReception(t *testing.T) {
	t.Parallel()

	snapshot := map[string]any{
		"data_push": map[string]any{
			"status_cause_code": "subscription_failed",
			"is_receiving_data": true,
			"logs": []any{
				map[string]any{"timestamp": 1700000000, "level": "INFO", "message": "connected"},
				map[string]any{"timestamp": 1700000060, "level": "WARN", "message": "feed stalled"},
			},
		},
	}
	channels := newTestNormalizer().BuildChannelMetrics(snapshot)
	if len(channels) != 1 {
		t.Fatalf("expected one implicit channel, got %d", len(channels))
	}
	ch := channels[0]
	if ch.IsReceivingData == nil || *ch.IsReceivingData {
		t.Fatalf("reception should be downgraded to false, got %v", ch.IsReceivingData)
	}
	if !ch.AwaitingData {
		t.Fatalf("awaiting data should be true when not receiving")
	}
	if ch.CauseCode == nil || *ch.CauseCode != "subscription_failed" {
		t.Fatalf("cause code = %v", ch.CauseCode)
	}
	if len(ch.Logs) != 2 || ch.Logs[0].Message != "feed stalled" || ch.Logs[0].Tone != string(core.ToneWarning) {
		t.Fatalf("unexpected channel logs: %+v", ch.Logs)
	}
}

func TestScenarioBatchAggregationKeepsTwentyNewest(t *testing.T) {
	t.Parallel()

	logs := make([]any, 0, 22)
	for i := 0; i < 22; i++ {
		logs = append(logs, map[string]any{
			"id":        fmt.Sprintf("agg-%02d", i),
			"timestamp": 1700000000 + i*60,
			"message":   fmt.Sprintf("batch %d closed", i),
		})
	}
	snapshot := map[string]any{
		"summary": map[string]any{
			"phases": []any{
				map[string]any{"key": "batch_aggregation", "status": "running", "logs": logs},
			},
		},
	}

	view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(snapshot), models.PhaseBatchAggregation)
	if len(view.Logs) != MaxLogEntries {
		t.Fatalf("got %d logs, want %d", len(view.Logs), MaxLogEntries)
	}
	if view.Logs[0].ID != "agg-21" || view.Logs[19].ID != "agg-02" {
		t.Fatalf("window is %s..%s, want agg-21..agg-02", view.Logs[0].ID, view.Logs[19].ID)
	}
	for i := 1; i < len(view.Logs); i++ {
		if *view.Logs[i].Instant >= *view.Logs[i-1].Instant {
			t.Fatalf("logs not newest first at %d", i)
		}
	}
	if view.Status == nil || *view.Status != "RUNNING" || view.Tone != string(core.ToneSuccess) {
		t.Fatalf("status/tone = %v/%q", view.Status, view.Tone)
	}
}

func signalSnapshot() map[string]any {
	logs := make([]any, 0, 30)
	for i := 0; i < 30; i++ {
		logs = append(logs, map[string]any{
			"timestamp": 1700000000 + i,
			"message":   fmt.Sprintf("BUY signal triggered %d", i),
		})
	}
	stages := make([]any, 0, 8)
	for i := 0; i < 8; i++ {
		stages = append(stages, map[string]any{
			"stage":     "ma_cross",
			"side":      "buy",
			"timestamp": 1700000100 + i,
		})
	}
	processing := make([]any, 0, 25)
	for i := 0; i < 25; i++ {
		processing = append(processing, map[string]any{
			"stage":      "signal_generation",
			"step":       "rsi",
			"metric":     55,
			"threshold":  70,
			"comparison": "lt",
			"passed":     true,
			"timestamp":  1700000200 + i,
		})
	}
	return map[string]any{
		"workflow": map[string]any{
			"signal_generation": map[string]any{
				"status":        "active",
				"logs":          logs,
				"stage_signals": stages,
			},
		},
		"processing_log": processing,
	}
}

func TestScenarioSignalGenerationCaps(t *testing.T) {
	t.Parallel()

	view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(signalSnapshot()), models.PhaseSignalGeneration)
	if len(view.SignalEvents) != MaxSignalEvents {
		t.Fatalf("signal events = %d", len(view.SignalEvents))
	}
	if len(view.StageSignals) != MaxStageSignals {
		t.Fatalf("stage signals = %d", len(view.StageSignals))
	}
	if len(view.ProcessingLogs) != MaxDisplayProcessingLogs {
		t.Fatalf("processing logs = %d", len(view.ProcessingLogs))
	}
	if len(view.Logs) != MaxLogEntries {
		t.Fatalf("logs = %d", len(view.Logs))
	}
	for _, ev := range view.SignalEvents {
		if ev.Side != string(core.SideBuy) || ev.Timestamp == nil {
			t.Fatalf("unexpected signal event %+v", ev)
		}
	}
	if view.StageSignals[0].Stage != "ma_cross" || view.StageSignals[0].Side != string(core.SideBuy) {
		t.Fatalf("unexpected stage signal %+v", view.StageSignals[0])
	}
	if got := view.ProcessingLogs[0].Message; got != "rsi (< 70) · Passed" {
		t.Fatalf("processing message = %q", got)
	}
}

func TestScenarioAmbiguousTextProducesNoSignal(t *testing.T) {
	t.Parallel()

	snapshot := map[string]any{
		"phases": []any{
			map[string]any{
				"name": "Signal Generation",
				"logs": []any{
					map[string]any{"timestamp": 1700000060, "level": "WARN", "message": "Subscription lost; awaiting refresh"},
					map[string]any{"timestamp": 1700000000, "message": "BUY signal triggered"},
				},
			},
		},
	}
	view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(snapshot), models.PhaseSignalGeneration)
	if len(view.SignalEvents) != 1 {
		t.Fatalf("expected exactly one signal event, got %+v", view.SignalEvents)
	}
	if view.SignalEvents[0].Side != string(core.SideBuy) {
		t.Fatalf("side = %q", view.SignalEvents[0].Side)
	}
	if view.SignalEvents[0].Timestamp == nil || *view.SignalEvents[0].Timestamp != "2023-11-14 22:13:20" {
		t.Fatalf("timestamp = %v", view.SignalEvents[0].Timestamp)
	}
}

// -----------------------------------------------------------------------------

func TestNormalizeIsIdempotentAndDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	snapshot := signalSnapshot()
	before, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	n := newTestNormalizer()
	ch1, p1 := n.Normalize(snapshot)
	ch2, p2 := n.Normalize(snapshot)
	if !reflect.DeepEqual(ch1, ch2) || !reflect.DeepEqual(p1, p2) {
		t.Fatalf("normalizing twice produced different output")
	}

	after, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("input snapshot was modified")
	}
}

func TestProcessingEntriesTakePriorityInCombinedLogs(t *testing.T) {
	t.Parallel()

	var processing, native []any
	for i := 0; i < 15; i++ {
		processing = append(processing, map[string]any{
			"stage": "order-execution", "step": "risk check", "passed": i%2 == 0, "timestamp": 1700000000 + i,
		})
		native = append(native, map[string]any{
			"id": fmt.Sprintf("n-%d", i), "message": "heartbeat", "timestamp": 1700001000 + i,
		})
	}
	snapshot := map[string]any{
		"summary": map[string]any{"processing_log": processing},
		"workflow": map[string]any{
			"order_execution": map[string]any{"logs": native},
		},
	}

	view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(snapshot), models.PhaseOrderExecution)
	if len(view.Logs) != MaxLogEntries {
		t.Fatalf("logs = %d", len(view.Logs))
	}
	fromProcessing := 0
	for _, rec := range view.Logs {
		if rec.Message == "risk check · Passed" || rec.Message == "risk check · Failed" {
			fromProcessing++
		}
	}
	if fromProcessing != 15 {
		t.Fatalf("combined window kept %d processing entries, want 15", fromProcessing)
	}
	if view.Logs[0].ID != "n-14" {
		t.Fatalf("combined window should be newest first, got %s", view.Logs[0].ID)
	}
	if len(view.ProcessingLogs) != 0 {
		t.Fatalf("processing logs are only exposed on signal generation")
	}
}

func TestMultipleChannels(t *testing.T) {
	t.Parallel()

	snapshot := map[string]any{
		"data_pushes": []any{
			map[string]any{
				"label":             "AAPL 1m",
				"symbol":            "AAPL",
				"is_receiving_data": "yes",
				"message_count":     "120",
				"logs": []any{
					map[string]any{"timestamp": 1700000000, "level": "info", "message": "tick"},
				},
			},
			map[string]any{
				"name":              "MSFT 1m",
				"symbol":            "MSFT",
				"is_receiving_data": true,
				"status_cause":      "connection lost",
			},
		},
		"stop_levels": map[string]any{"stop_loss_enabled": 1, "stop_loss_price": "101.5"},
	}

	channels := newTestNormalizer().BuildChannelMetrics(snapshot)
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	aapl, msft := channels[0], channels[1]
	if aapl.Label != "AAPL 1m" || aapl.IsReceivingData == nil || !*aapl.IsReceivingData || aapl.AwaitingData {
		t.Fatalf("unexpected AAPL channel %+v", aapl)
	}
	if aapl.MessageCount == nil || *aapl.MessageCount != 120 {
		t.Fatalf("message count = %v", aapl.MessageCount)
	}
	if aapl.StopLossEnabled == nil || !*aapl.StopLossEnabled || aapl.StopLossPrice == nil || *aapl.StopLossPrice != 101.5 {
		t.Fatalf("stop levels not applied: %v %v", aapl.StopLossEnabled, aapl.StopLossPrice)
	}
	if msft.Label != "MSFT 1m" || msft.IsReceivingData == nil || *msft.IsReceivingData || !msft.AwaitingData {
		t.Fatalf("unexpected MSFT channel %+v", msft)
	}
}

func TestAwaitingFlagRespectsReception(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	receiving := n.BuildChannelMetrics(map[string]any{
		"summary": map[string]any{"is_receiving_data": true, "awaiting_data": true},
	})
	if receiving[0].AwaitingData {
		t.Fatalf("a receiving channel cannot be awaiting data")
	}
	unknown := n.BuildChannelMetrics(map[string]any{"summary": map[string]any{}})
	if unknown[0].IsReceivingData != nil || !unknown[0].AwaitingData {
		t.Fatalf("unknown reception should await data, got %+v", unknown[0])
	}
}

func messagesOf(records []models.MLogRecord) map[string]models.MLogRecord {
	out := make(map[string]models.MLogRecord, len(records))
	for _, r := range records {
		out[r.Message] = r
	}
	return out
}

func TestProcessingLogMatching(t *testing.T) {
	t.Parallel()

	sameInstant := []any{
		map[string]any{"stage": "signal_generation", "step": "rsi", "threshold": 70, "comparison": "lt", "passed": true, "timestamp": 1700000200},
		map[string]any{"stage": "signal_generation", "step": "macd", "passed": false, "timestamp": 1700000200},
		map[string]any{"stage": "signal_generation", "step": "volume", "timestamp": 1700000200},
	}
	stageless := []any{
		map[string]any{"step": "spread", "passed": true, "timestamp": 1700000300},
		map[string]any{"step": "depth", "passed": false, "timestamp": 1700000301},
	}

	cases := []struct {
		name       string
		processing []any
		phase      string
		want       []string
	}{
		{"rules sharing one instant", sameInstant, models.PhaseSignalGeneration, []string{"rsi (< 70) · Passed", "macd · Failed", "volume · Pending"}},
		{"rules for another stage", sameInstant, models.PhaseBatchAggregation, nil},
		{"stage-less rules on signal generation", stageless, models.PhaseSignalGeneration, []string{"spread · Passed", "depth · Failed"}},
		{"stage-less rules on subscription", stageless, models.PhaseSubscription, nil},
		{"stage-less rules on order execution", stageless, models.PhaseOrderExecution, nil},
	}
	for _, tc := range cases {
		snapshot := map[string]any{"summary": map[string]any{"processing_log": tc.processing}}
		view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(snapshot), tc.phase)
		if len(view.Logs) != len(tc.want) {
			t.Fatalf("%s: logs = %d, want %d", tc.name, len(view.Logs), len(tc.want))
		}
		got := messagesOf(view.Logs)
		for _, msg := range tc.want {
			if _, ok := got[msg]; !ok {
				t.Fatalf("%s: %q missing from %v", tc.name, msg, got)
			}
		}
		if tc.phase == models.PhaseSignalGeneration && len(view.ProcessingLogs) != len(tc.want) {
			t.Fatalf("%s: processing logs = %d, want %d", tc.name, len(view.ProcessingLogs), len(tc.want))
		}
	}
}

func TestProcessingOutcomeLevels(t *testing.T) {
	t.Parallel()

	snapshot := map[string]any{
		"processing_log": []any{
			map[string]any{"step": "rsi", "passed": "yes", "timestamp": 1700000200},
			map[string]any{"step": "macd", "passed": 0, "timestamp": 1700000200},
			map[string]any{"step": "volume", "timestamp": 1700000200},
		},
	}
	view := mustPhase(t, newTestNormalizer().BuildPipelineMetrics(snapshot), models.PhaseSignalGeneration)
	got := messagesOf(view.ProcessingLogs)

	cases := []struct {
		message string
		level   string
		tone    core.Tone
	}{
		{"rsi · Passed", "INFO", core.ToneSuccess},
		{"macd · Failed", "WARN", core.ToneWarning},
		{"volume · Pending", "INFO", core.ToneNeutral},
	}
	for _, tc := range cases {
		rec, ok := got[tc.message]
		if !ok {
			t.Fatalf("%q missing from %v", tc.message, got)
		}
		if rec.Level != tc.level || rec.Tone != string(tc.tone) {
			t.Fatalf("%q: level/tone = %s/%s, want %s/%s", tc.message, rec.Level, rec.Tone, tc.level, tc.tone)
		}
	}
}
