package normalizer

import (
	"fmt"
	"strings"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

var (
	processingLogKeys   = []string{"processing_log", "processingLog", "processing_logs", "processingLogs"}
	processingStageKeys = []string{"stage", "stage_name", "stageName", "pipeline_stage", "pipelineStage"}
	processingStepKeys  = []string{"step", "rule", "rule_name", "ruleName", "check", "name", "label"}
	processingValueKeys = []string{"metric", "value", "current", "current_value", "currentValue", "actual"}
	processingLimitKeys = []string{"threshold", "limit", "target", "expected"}
	processingCmpKeys   = []string{"comparison", "comparator", "operator", "op", "compare"}
	processingPassKeys  = []string{"passed", "pass", "ok", "success", "result"}
)

var comparatorSymbols = map[string]string{
	"gt": ">", "greater": ">", "greaterthan": ">", ">": ">",
	"gte": "≥", "ge": "≥", "greaterorequal": "≥", ">=": "≥",
	"lt": "<", "less": "<", "lessthan": "<", "<": "<",
	"lte": "≤", "le": "≤", "lessorequal": "≤", "<=": "≤",
	"eq": "=", "equal": "=", "equals": "=", "==": "=", "=": "=",
	"ne": "≠", "neq": "≠", "notequal": "≠", "!=": "≠",
}

func comparatorSymbol(raw string) string {
	s := strings.TrimSpace(raw)
	if sym, ok := comparatorSymbols[s]; ok {
		return sym
	}
	if sym, ok := comparatorSymbols[core.NormalizeName(s)]; ok {
		return sym
	}
	return s
}

// -----------------------------------------------------------------------------

// processingEntries returns the raw rule-evaluation stream found in scopes.
func processingEntries(scopes ...map[string]any) []map[string]any {
	var entries []map[string]any
	for _, v := range core.Fields(scopes, processingLogKeys...) {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		for _, el := range list {
			if m, ok := el.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	}
	return entries
}

// processingRecords matches the stream to one phase and renders each entry
// as a pass/fail log record, newest first and capped.
func processingRecords(scopes []map[string]any, phaseKey string, f *core.Formatter, limit int) []models.MLogRecord {
	names := core.NameSet(PhaseVariants[phaseKey]...)
	seen := make(map[string]struct{})
	records := []models.MLogRecord{}

	for i, entry := range processingEntries(scopes...) {
		stage, hasStage := core.PickString(core.Field(entry, processingStageKeys...)...)
		if hasStage {
			if _, ok := names[core.NormalizeName(stage)]; !ok {
				continue
			}
		} else if phaseKey != models.PhaseSignalGeneration {
			continue
		}
		identity := IdentityKey(entry)
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}
		records = append(records, processingRecord(entry, phaseKey, i, f))
	}

	SortLogRecords(records)
	return TrimLogs(records, limit)
}

func processingRecord(entry map[string]any, phaseKey string, seq int, f *core.Formatter) models.MLogRecord {
	step, ok := core.PickString(core.Field(entry, processingStepKeys...)...)
	if !ok {
		step = "Rule"
	}
	current := processingValue(core.Field(entry, processingValueKeys...), f)
	threshold := processingValue(core.Field(entry, processingLimitKeys...), f)
	cmp := ""
	if c, ok := core.PickString(core.Field(entry, processingCmpKeys...)...); ok {
		cmp = comparatorSymbol(c)
	}

	level, tone, outcome := "INFO", core.ToneNeutral, "Pending"
	if passed, ok := core.PickBoolean(core.Field(entry, processingPassKeys...)...); ok {
		if passed {
			tone, outcome = core.ToneSuccess, "Passed"
		} else {
			level, tone, outcome = "WARN", core.ToneWarning, "Failed"
		}
	}

	message := step
	if cond := strings.TrimSpace(cmp + " " + threshold); cond != "" {
		message += " (" + cond + ")"
	}
	message += " · " + outcome

	rec := models.MLogRecord{
		Level:   level,
		Tone:    string(tone),
		Message: message,
		Details: []models.MDetailPair{
			{Key: "current", Value: current},
			{Key: "threshold", Value: threshold},
			{Key: "comparison", Value: cmp},
		},
		Raw:      entry,
		Sequence: seq,
	}
	resolver := f.Resolver()
	for _, v := range core.Field(entry, timestampKeys...) {
		if t, ok := resolver.Resolve(v, true); ok {
			ms := t.UnixMilli()
			display := resolver.Format(t)
			rec.Instant = &ms
			rec.Timestamp = &display
			break
		}
	}
	if id, ok := core.PickString(core.Field(entry, idKeys...)...); ok {
		rec.ID = id
	} else {
		rec.ID = fmt.Sprintf("processing-%s-%d", phaseKey, seq)
	}
	return rec
}

func processingValue(candidates []any, f *core.Formatter) string {
	for _, v := range candidates {
		if n, ok := core.ToNumber(v); ok {
			return f.Number(n)
		}
		if s, ok := core.ToDisplayString(v); ok {
			return s
		}
	}
	return ""
}
