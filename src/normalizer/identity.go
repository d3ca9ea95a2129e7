package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"runtime-observer/src/normalizer/core"
)

// Field-name variants shared by every log-shaped record.
var (
	idKeys = []string{"id", "log_id", "logId", "event_id", "eventId", "uuid"}

	timestampKeys = []string{
		"timestamp", "ts", "time", "datetime", "created_at", "createdAt", "logged_at", "loggedAt",
		"event_time", "eventTime", "at", "date", "updated_at", "updatedAt",
	}

	messageKeys = []string{"message", "msg", "text", "description", "event", "title", "summary", "content"}
	levelKeys   = []string{"level", "severity", "log_level", "logLevel", "lvl"}
	toneKeys    = []string{"tone", "status_tone", "statusTone"}
	detailKeys  = []string{"details", "detail", "data", "context", "extra", "fields", "metadata", "meta"}
)

// identityResolver only has to be stable, not zone-correct.
var identityResolver = core.TimestampResolver{}

// IdentityKey is the single duplicate-suppression rule: explicit id, then
// key, then the timestamp+message composite when both resolve, then the
// whole value.
func IdentityKey(v any) string {
	m, ok := core.AsMap(v)
	if !ok {
		return "value:" + canonical(v)
	}
	if id, ok := core.PickString(core.Field(m, idKeys...)...); ok {
		return "id:" + id
	}
	if key, ok := core.PickString(m["key"]); ok {
		return "key:" + key
	}
	ts, hasTs := timestampIdentity(m)
	msg, hasMsg := core.PickString(core.Field(m, messageKeys...)...)
	if hasTs && hasMsg {
		return "tm:" + ts + "|" + msg
	}
	return "value:" + canonical(m)
}

func timestampIdentity(m map[string]any) (string, bool) {
	raw := core.Field(m, timestampKeys...)
	for _, v := range raw {
		if ms, ok := identityResolver.Instant(v, true); ok {
			return strconv.FormatInt(ms, 10), true
		}
	}
	if s, ok := core.PickString(raw...); ok {
		return s, true
	}
	return "", false
}

// canonical renders a value deterministically; encoding/json sorts map keys.
func canonical(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
