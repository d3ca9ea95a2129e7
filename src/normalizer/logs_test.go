package normalizer

import (
	"testing"

	"runtime-observer/src/models"
)

func ids(records []models.MLogRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestGatherLogsDropsDuplicates(t *testing.T) {
	t.Parallel()

	source := []any{
		map[string]any{"id": "x", "message": "one", "timestamp": 1700000000},
		map[string]any{"id": "x", "message": "one again", "timestamp": 1700000001},
		map[string]any{"message": "same", "timestamp": 1700000100},
		map[string]any{"message": "same", "timestamp": "1700000100"},
		"plain text",
		"plain text",
		42,
	}
	records := newTestNormalizer().GatherLogs(source, nil, "ignored")
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %v", len(records), ids(records))
	}
	if records[0].Message != "same" || records[1].ID != "x" || records[2].Message != "plain text" {
		t.Fatalf("unexpected order: %+v", records)
	}
	if records[1].Message != "one" {
		t.Fatalf("the first occurrence should win, got %q", records[1].Message)
	}
	if records[2].Instant != nil || records[2].Timestamp != nil {
		t.Fatalf("plain text has no instant")
	}
}

func TestGatherLogsOrdering(t *testing.T) {
	t.Parallel()

	source := []any{
		"a",
		map[string]any{"message": "old", "timestamp": 1700000000},
		"b",
		map[string]any{"message": "new", "timestamp": 1700000500},
		map[string]any{"message": "tie-1", "timestamp": 1700000200},
		map[string]any{"message": "tie-2", "timestamp": 1700000200000},
		"c",
	}
	records := newTestNormalizer().GatherLogs(source)
	var got []string
	for _, r := range records {
		got = append(got, r.Message)
	}
	want := []string{"new", "tie-2", "tie-1", "old", "c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGatherLogsShapes(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()

	keyed := n.GatherLogs(map[string]any{
		"boot":  map[string]any{"message": "booted", "timestamp": 1700000000},
		"ready": map[string]any{"message": "ready", "timestamp": 1700000050},
	})
	if len(keyed) != 2 || keyed[0].ID != "ready" || keyed[1].ID != "boot" {
		t.Fatalf("keyed map gathered as %v", ids(keyed))
	}

	single := n.GatherLogs(map[string]any{"message": "solo", "level": "error"})
	if len(single) != 1 || single[0].Level != "ERROR" || single[0].Tone != "error" || single[0].ID != "log-0" {
		t.Fatalf("single object gathered as %+v", single)
	}

	defaults := n.GatherLogs([]any{map[string]any{"msg": "hello"}})
	if defaults[0].Level != "INFO" || defaults[0].Tone != "info" {
		t.Fatalf("defaults = %q/%q", defaults[0].Level, defaults[0].Tone)
	}

	neutral := n.GatherLogs([]any{map[string]any{"msg": "muted", "tone": "neutral", "level": "error"}})
	if neutral[0].Tone != "neutral" {
		t.Fatalf("explicit neutral tone lost: %q", neutral[0].Tone)
	}
}

func TestFlattenDetails(t *testing.T) {
	t.Parallel()

	records := newTestNormalizer().GatherLogs([]any{
		map[string]any{
			"message": "filled",
			"details": []any{
				[]any{"symbol", "AAPL"},
				map[string]any{"qty": 5},
				"loose",
			},
		},
		map[string]any{"message": "scalar", "details": 42},
		map[string]any{"message": "object", "details": map[string]any{"b": true, "a": "x"}},
	})
	byMessage := map[string][]models.MDetailPair{}
	for _, r := range records {
		byMessage[r.Message] = r.Details
	}

	want := map[string][]models.MDetailPair{
		"filled": {{Key: "symbol", Value: "AAPL"}, {Key: "qty", Value: "5"}, {Key: "detail", Value: "loose"}},
		"scalar": {{Key: "detail", Value: "42"}},
		"object": {{Key: "a", Value: "x"}, {Key: "b", Value: "true"}},
	}
	for msg, pairs := range want {
		got := byMessage[msg]
		if len(got) != len(pairs) {
			t.Fatalf("%s: got %+v, want %+v", msg, got, pairs)
		}
		for i := range pairs {
			if got[i] != pairs[i] {
				t.Fatalf("%s: got %+v, want %+v", msg, got, pairs)
			}
		}
	}
}

func TestTrimLogs(t *testing.T) {
	t.Parallel()

	records := make([]models.MLogRecord, 5)
	if got := TrimLogs(records, 3); len(got) != 3 {
		t.Fatalf("TrimLogs kept %d", len(got))
	}
	if got := TrimLogs(records, 10); len(got) != 5 {
		t.Fatalf("TrimLogs should keep short lists, kept %d", len(got))
	}
}

func TestGatherLogsSharedInstant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		source []any
		want   int
	}{
		{"message-less entries with different levels", []any{
			map[string]any{"ts": 1700000000, "level": "INFO", "data": map[string]any{"price": 1}},
			map[string]any{"ts": 1700000000, "level": "WARN", "data": map[string]any{"price": 2}},
		}, 2},
		{"different messages at one instant", []any{
			map[string]any{"timestamp": 1700000000, "message": "tick"},
			map[string]any{"timestamp": 1700000000, "message": "tock"},
		}, 2},
		{"same message at one instant", []any{
			map[string]any{"timestamp": 1700000000, "message": "tick", "level": "INFO"},
			map[string]any{"timestamp": 1700000000, "message": "tick", "level": "DEBUG"},
		}, 1},
		{"identical message-less entries", []any{
			map[string]any{"ts": 1700000000, "level": "INFO"},
			map[string]any{"ts": 1700000000, "level": "INFO"},
		}, 1},
		{"same message without timestamps", []any{
			map[string]any{"message": "tick", "level": "INFO"},
			map[string]any{"message": "tick", "level": "WARN"},
		}, 2},
	}
	for _, tc := range cases {
		records := newTestNormalizer().GatherLogs(tc.source)
		if len(records) != tc.want {
			t.Fatalf("%s: gathered %d, want %d: %+v", tc.name, len(records), tc.want, records)
		}
	}

	warn := newTestNormalizer().GatherLogs(cases[0].source)
	levels := map[string]bool{}
	for _, r := range warn {
		levels[r.Level] = true
	}
	if !levels["WARN"] || !levels["INFO"] {
		t.Fatalf("levels = %v", levels)
	}
}

func TestIdentityKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b map[string]any
		same bool
	}{
		{map[string]any{"id": "x", "message": "a"}, map[string]any{"id": "x", "message": "b"}, true},
		{map[string]any{"key": "k", "ts": 1}, map[string]any{"key": "k", "ts": 2}, true},
		{map[string]any{"timestamp": 1700000000, "message": "m"}, map[string]any{"timestamp": "1700000000", "message": "m", "level": "WARN"}, true},
		{map[string]any{"timestamp": 1700000000, "step": "rsi"}, map[string]any{"timestamp": 1700000000, "step": "macd"}, false},
		{map[string]any{"message": "m", "level": "INFO"}, map[string]any{"message": "m", "level": "WARN"}, false},
	}
	for i, tc := range cases {
		if got := IdentityKey(tc.a) == IdentityKey(tc.b); got != tc.same {
			t.Fatalf("case %d: same identity = %v, want %v", i, got, tc.same)
		}
	}
}

func TestGatherLogsOutOfRangeEpoch(t *testing.T) {
	t.Parallel()

	records := newTestNormalizer().GatherLogs([]any{
		map[string]any{"id": "garbage", "message": "far future", "timestamp": 1e300},
		map[string]any{"id": "real", "message": "tick", "timestamp": 1700000000},
	})
	if len(records) != 2 || records[0].ID != "real" || records[1].ID != "garbage" {
		t.Fatalf("order = %v", ids(records))
	}
	if records[1].Instant != nil || records[1].Timestamp != nil {
		t.Fatalf("out-of-range epoch resolved to %v / %v", records[1].Instant, records[1].Timestamp)
	}
}
