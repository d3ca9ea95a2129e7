package normalizer

import (
	"strings"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

// -----------------------------------------------------------------------------
// Side inference
// -----------------------------------------------------------------------------

var sideFieldNames = core.NameSet(
	"side", "signal_side", "order_side", "trade_side", "direction", "trade_direction", "decision",
	"action", "position", "position_side", "signal", "signal_type", "bias",
)

// InferSide classifies a log record as BUY or SELL. Structured fields are
// trusted before the detail pairs, the message and finally the raw text.
func InferSide(rec models.MLogRecord) (core.Side, bool) {
	if side, ok := sideFromFields(rec.Raw, 1); ok {
		return side, true
	}
	for _, d := range rec.Details {
		if _, ok := sideFieldNames[core.NormalizeName(d.Key)]; !ok {
			continue
		}
		if side, ok := core.ClassifySideValue(d.Value); ok {
			return side, true
		}
	}
	if side, ok := core.ClassifySide(rec.Message); ok {
		return side, true
	}
	return core.ClassifySide(rawText(rec.Raw, 2))
}

func sideFromFields(m map[string]any, depth int) (core.Side, bool) {
	for _, k := range core.SortedKeys(m) {
		if _, ok := sideFieldNames[core.NormalizeName(k)]; !ok {
			continue
		}
		if side, ok := sideFromValue(m[k], depth); ok {
			return side, true
		}
	}
	return "", false
}

func sideFromValue(v any, depth int) (core.Side, bool) {
	switch t := v.(type) {
	case string:
		return core.ClassifySideValue(t)
	case map[string]any:
		if depth > 0 {
			return sideFromFields(t, depth-1)
		}
	case []any:
		for _, el := range t {
			if side, ok := sideFromValue(el, depth); ok {
				return side, true
			}
		}
	}
	return "", false
}

// rawText joins every string value of a record, keys sorted.
func rawText(m map[string]any, depth int) string {
	var parts []string
	var collect func(v any, depth int)
	collect = func(v any, depth int) {
		switch t := v.(type) {
		case string:
			parts = append(parts, t)
		case map[string]any:
			if depth < 0 {
				return
			}
			for _, k := range core.SortedKeys(t) {
				collect(t[k], depth-1)
			}
		case []any:
			if depth < 0 {
				return
			}
			for _, el := range t {
				collect(el, depth-1)
			}
		}
	}
	collect(m, depth)
	return strings.Join(parts, " ")
}

// -----------------------------------------------------------------------------
// Signal events
// -----------------------------------------------------------------------------

// signalEvents classifies records newest first; unclassifiable ones are dropped.
func signalEvents(records []models.MLogRecord, limit int) []models.MSignalEvent {
	events := []models.MSignalEvent{}
	for _, rec := range records {
		if len(events) >= limit {
			break
		}
		side, ok := InferSide(rec)
		if !ok {
			continue
		}
		events = append(events, models.MSignalEvent{Side: string(side), Timestamp: rec.Timestamp})
	}
	return events
}

var stageKeys = []string{"stage", "stage_name", "stageName", "rule", "step", "name", "phase"}

// stageSignals takes classified stage-tagged records in the given order.
func stageSignals(limit int, lists ...[]models.MLogRecord) []models.MStageSignal {
	out := []models.MStageSignal{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, rec := range list {
			if len(out) >= limit {
				return out
			}
			stage, ok := core.PickString(core.Field(rec.Raw, stageKeys...)...)
			if !ok {
				continue
			}
			side, ok := InferSide(rec)
			if !ok {
				continue
			}
			identity := IdentityKey(rec.Raw)
			if _, dup := seen[identity]; dup {
				continue
			}
			seen[identity] = struct{}{}
			out = append(out, models.MStageSignal{Stage: stage, Side: string(side), Timestamp: rec.Timestamp})
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Order executions
// -----------------------------------------------------------------------------

var (
	orderSymbolKeys = []string{"symbol", "ticker", "contract", "instrument", "security", "code", "stock_code", "symbol_code"}
	orderStatusKeys = []string{"status", "state", "order_status", "execution_status", "fill_status"}
	orderSideKeys   = []string{"side", "order_side", "trade_side", "direction", "action"}

	orderQuantityKeys = []string{
		"quantity", "qty", "size", "amount", "volume", "shares", "lots", "filled_qty", "filled_quantity",
		"order_qty", "order_quantity",
	}
)

// orderScopes lists where order attributes are looked up, in priority order.
func orderScopes(rec models.MLogRecord) []map[string]any {
	details := make(map[string]any, len(rec.Details))
	for _, d := range rec.Details {
		if _, dup := details[d.Key]; !dup {
			details[d.Key] = d.Value
		}
	}
	scopes := []map[string]any{details, rec.Raw}
	for _, k := range []string{"details", "payload", "order"} {
		if m, ok := rec.Raw[k].(map[string]any); ok {
			scopes = append(scopes, m)
		}
	}
	return scopes
}

// lookup returns the first coercible value of the first matching key, with
// keys compared after normalization.
func lookup[T any](scopes []map[string]any, keys []string, coerce func(any) (T, bool)) (T, bool) {
	for _, scope := range scopes {
		index := make(map[string]string, len(scope))
		for _, k := range core.SortedKeys(scope) {
			norm := core.NormalizeName(k)
			if _, dup := index[norm]; !dup {
				index[norm] = k
			}
		}
		for _, key := range keys {
			actual, ok := index[core.NormalizeName(key)]
			if !ok {
				continue
			}
			if v, ok := coerce(scope[actual]); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

func sideValue(v any) (core.Side, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return core.ClassifySideValue(s)
}

// ExtractOrder recovers order attributes from one log record. Records that
// yield no side, symbol or quantity are not orders.
func ExtractOrder(rec models.MLogRecord) (models.MOrderExecution, bool) {
	scopes := orderScopes(rec)
	order := models.MOrderExecution{ID: rec.ID, Timestamp: rec.Timestamp}

	side, ok := lookup(scopes, orderSideKeys, sideValue)
	if !ok {
		side, ok = InferSide(rec)
	}
	if ok {
		s := string(side)
		order.Side = &s
	}
	if symbol, ok := lookup(scopes, orderSymbolKeys, core.ToDisplayString); ok {
		order.Symbol = &symbol
	}
	if qty, ok := lookup(scopes, orderQuantityKeys, core.ToNumber); ok {
		order.Quantity = &qty
	}
	if order.Side == nil && order.Symbol == nil && order.Quantity == nil {
		return models.MOrderExecution{}, false
	}
	if status, ok := lookup(scopes, orderStatusKeys, core.ToDisplayString); ok {
		status = strings.ToUpper(status)
		order.Status = &status
	}
	return order, true
}

func orderExecutions(records []models.MLogRecord, limit int) []models.MOrderExecution {
	out := []models.MOrderExecution{}
	for _, rec := range records {
		if len(out) >= limit {
			break
		}
		if order, ok := ExtractOrder(rec); ok {
			out = append(out, order)
		}
	}
	return out
}
