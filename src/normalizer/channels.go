package normalizer

import (
	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

var (
	channelCollectionKeys = []string{"data_pushes", "dataPushes", "subscriptions", "channels"}
	implicitSourceKeys    = []string{"data_push", "dataPush"}

	logContainerKeys = []string{
		"logs", "log", "log_entries", "logEntries", "events", "recent_logs", "recentLogs", "entries", "history", "messages",
	}
	receivingKeys = []string{
		"is_receiving_data", "isReceivingData", "receiving_data", "receivingData", "is_receiving", "receiving",
	}
	lastUpdateKeys = []string{
		"last_update", "lastUpdate", "last_update_time", "lastUpdateTime", "last_data_time", "lastDataTime",
		"last_message_at", "lastMessageAt", "updated_at", "updatedAt", "timestamp",
	}

	awaitingKeys     = []string{"awaiting_data", "awaitingData", "awaiting", "waiting_for_data", "waitingForData"}
	labelKeys        = []string{"label", "name", "display_name", "displayName", "channel", "topic"}
	subscriptionKeys = []string{"subscription_id", "subscriptionId", "sub_id", "subId", "subscription"}
	symbolKeys       = []string{"symbol", "ticker", "code", "instrument", "contract"}
	reasonKeys       = []string{"status_reason", "statusReason", "reason"}
	causeKeys        = []string{"status_cause", "statusCause", "cause"}
	causeCodeKeys    = []string{"status_cause_code", "statusCauseCode", "cause_code", "causeCode", "error_code", "errorCode"}

	runtimeKeys   = []string{"runtime_seconds", "runtimeSeconds", "uptime_seconds", "uptimeSeconds", "running_seconds", "runtime"}
	msgCountKeys  = []string{"message_count", "messageCount", "msg_count", "msgCount", "messages_received", "received_count"}
	thresholdKeys = []string{"threshold_hits", "thresholdHits", "threshold_hit_count", "thresholdHitCount"}
	buyCountKeys  = []string{"buy_signal_count", "buySignalCount", "buy_signals", "buySignals", "buy_count", "buyCount"}
	sellCountKeys = []string{"sell_signal_count", "sellSignalCount", "sell_signals", "sellSignals", "sell_count", "sellCount"}
	stopLevelKeys = []string{"stop_levels", "stopLevels", "risk", "protection"}
	slEnabledKeys = []string{"stop_loss_enabled", "stopLossEnabled", "sl_enabled"}
	slPriceKeys   = []string{"stop_loss_price", "stopLossPrice", "stop_loss", "stopLoss", "sl_price"}
	tpEnabledKeys = []string{"take_profit_enabled", "takeProfitEnabled", "tp_enabled"}
	tpPriceKeys   = []string{"take_profit_price", "takeProfitPrice", "take_profit", "takeProfit", "tp_price"}
)

type channelInput struct {
	scopes   []map[string]any
	logs     []any
	hintName string
}

// -----------------------------------------------------------------------------

func (b *build) channelMetrics(root map[string]any) []models.MChannelMetrics {
	out := []models.MChannelMetrics{}
	if root == nil {
		return out
	}
	for _, in := range detectChannels(root) {
		out = append(out, b.channel(in))
	}
	return out
}

// detectChannels enumerates explicit channels and falls back to one implicit
// channel assembled from data_push, summary and the root.
func detectChannels(root map[string]any) []channelInput {
	summary, _ := core.AsMap(root["summary"])
	stopLevels := firstMap(core.Fields([]map[string]any{root, summary}, stopLevelKeys...))

	var explicit []channelInput
	add := func(channel map[string]any, hint string) {
		scopes := []map[string]any{channel}
		if own := firstMap(core.Field(channel, stopLevelKeys...)); own != nil {
			scopes = append(scopes, own)
		} else if stopLevels != nil {
			scopes = append(scopes, stopLevels)
		}
		explicit = append(explicit, channelInput{
			scopes:   scopes,
			logs:     core.Field(channel, logContainerKeys...),
			hintName: hint,
		})
	}
	collections := core.Fields([]map[string]any{root, summary}, channelCollectionKeys...)
	for _, v := range core.Field(root, implicitSourceKeys...) {
		if list, ok := v.([]any); ok {
			collections = append(collections, list)
		}
	}
	for _, c := range collections {
		switch t := c.(type) {
		case []any:
			for _, el := range t {
				if m, ok := core.AsMap(el); ok {
					add(m, "")
				}
			}
		case map[string]any:
			if !isChannelCollection(t) {
				continue
			}
			for _, k := range core.SortedKeys(t) {
				if m, ok := core.AsMap(t[k]); ok {
					add(m, k)
				}
			}
		}
		if len(explicit) > 0 {
			return explicit
		}
	}

	dataPush := firstMap(core.Field(root, implicitSourceKeys...))
	scopes := []map[string]any{}
	for _, m := range []map[string]any{dataPush, summary, root, stopLevels} {
		if m != nil {
			scopes = append(scopes, m)
		}
	}
	return []channelInput{{
		scopes: scopes,
		logs:   core.Fields([]map[string]any{dataPush, summary, root}, logContainerKeys...),
	}}
}

// isChannelCollection is true for a keyed map whose values are all records.
func isChannelCollection(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, ok := core.AsMap(v); !ok {
			return false
		}
	}
	return true
}

func firstMap(candidates []any) map[string]any {
	for _, c := range candidates {
		if m, ok := core.AsMap(c); ok {
			return m
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (b *build) channel(in channelInput) models.MChannelMetrics {
	field := func(keys []string) []any { return core.Fields(in.scopes, keys...) }
	ch := models.MChannelMetrics{
		SubscriptionID:    optString(field(subscriptionKeys)),
		Symbol:            optString(field(symbolKeys)),
		Reason:            optString(field(reasonKeys)),
		Cause:             optString(field(causeKeys)),
		CauseCode:         optString(field(causeCodeKeys)),
		RuntimeSeconds:    optNumber(field(runtimeKeys)),
		MessageCount:      optNumber(field(msgCountKeys)),
		ThresholdHits:     optNumber(field(thresholdKeys)),
		BuySignalCount:    optNumber(field(buyCountKeys)),
		SellSignalCount:   optNumber(field(sellCountKeys)),
		StopLossEnabled:   optBool(field(slEnabledKeys)),
		StopLossPrice:     optNumber(field(slPriceKeys)),
		TakeProfitEnabled: optBool(field(tpEnabledKeys)),
		TakeProfitPrice:   optNumber(field(tpPriceKeys)),
		IsReceivingData:   optBool(field(receivingKeys)),
		Logs:              TrimLogs(gatherLogs(b.resolver, in.logs...), MaxLogEntries),
	}
	for _, v := range field(lastUpdateKeys) {
		if s, ok := b.resolver.Display(v, true); ok {
			ch.LastUpdate = &s
			break
		}
	}

	ch.Label = channelLabel(ch, field(labelKeys), in.hintName)

	if channelFailing(ch) {
		receiving := false
		ch.IsReceivingData = &receiving
	}
	receiving := ch.IsReceivingData != nil && *ch.IsReceivingData
	if awaiting, ok := core.PickBoolean(field(awaitingKeys)...); ok {
		ch.AwaitingData = awaiting
	} else {
		ch.AwaitingData = !receiving
	}
	if receiving {
		ch.AwaitingData = false
	}
	return ch
}

// channelFailing applies the downgrade rule: the latest log is alarming, or
// the channel or its latest log reports a failure cause.
func channelFailing(ch models.MChannelMetrics) bool {
	texts := []*string{ch.Cause, ch.CauseCode}
	if len(ch.Logs) > 0 {
		latest := ch.Logs[0]
		if core.Tone(latest.Tone).IsAlarming() {
			return true
		}
		for _, v := range core.Field(latest.Raw, append(append([]string{}, causeKeys...), causeCodeKeys...)...) {
			if s, ok := core.ToDisplayString(v); ok {
				texts = append(texts, &s)
			}
		}
	}
	for _, t := range texts {
		if t != nil && core.IsFailureText(*t) {
			return true
		}
	}
	return false
}

func channelLabel(ch models.MChannelMetrics, candidates []any, hint string) string {
	if label, ok := core.PickString(candidates...); ok {
		return label
	}
	if hint != "" {
		return hint
	}
	for _, p := range []*string{ch.Symbol, ch.SubscriptionID} {
		if p != nil {
			return *p
		}
	}
	return "Data channel"
}

// -----------------------------------------------------------------------------

func optString(candidates []any) *string {
	if s, ok := core.PickString(candidates...); ok {
		return &s
	}
	return nil
}

func optNumber(candidates []any) *float64 {
	if n, ok := core.PickNumber(candidates...); ok {
		return &n
	}
	return nil
}

func optBool(candidates []any) *bool {
	if b, ok := core.PickBoolean(candidates...); ok {
		return &b
	}
	return nil
}
