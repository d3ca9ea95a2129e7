package normalizer

import (
	"testing"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

func TestExtractPhaseMetrics(t *testing.T) {
	t.Parallel()

	record := map[string]any{
		"status":    "running",
		"reason":    "warming up",
		"msg_count": 1234,
		"enabled":   true,
		"metrics": map[string]any{
			"latency_ms": map[string]any{"value": 12.345, "label": "Latency"},
			"msgCount":   99,
			"empty":      "",
		},
		"stats":        []any{map[string]any{"key": "throughput", "value": 0.5}},
		"logs":         []any{map[string]any{"message": "x"}},
		"metric_order": []any{"throughput"},
	}

	got := ExtractPhaseMetrics(record, core.DefaultSettings().NewFormatter())
	want := []models.MPhaseMetric{
		{Key: "throughput", Label: "Throughput", Value: "0.5"},
		{Key: "enabled", Label: "Enabled", Value: "Yes"},
		{Key: "latency_ms", Label: "Latency", Value: "12.3"},
		{Key: "msgCount", Label: "Msg count", Value: "99"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("metric %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExtractPhaseMetricsEmpty(t *testing.T) {
	t.Parallel()

	f := core.DefaultSettings().NewFormatter()
	if got := ExtractPhaseMetrics(nil, f); got == nil || len(got) != 0 {
		t.Fatalf("nil record should give an empty list, got %v", got)
	}
	if got := ExtractPhaseMetrics(map[string]any{"status": "idle", "logs": []any{}}, f); len(got) != 0 {
		t.Fatalf("descriptive fields are not metrics, got %v", got)
	}
}
