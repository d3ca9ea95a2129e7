package core

import (
	"strings"
	"unicode"
)

// Tone is the coarse severity class used for styling and failure detection.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
	ToneDebug   Tone = "debug"
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
)

// Side is a directional trading signal. There is deliberately no unknown value.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Checked in this order; the first class with a matching token wins.
var toneTable = []struct {
	tone  Tone
	words map[string]struct{}
}{
	{ToneError, wordSet("error", "err", "fatal", "critical", "severe", "negative")},
	{ToneWarning, wordSet("warn", "warning", "caution")},
	{ToneSuccess, wordSet("success", "ok", "passed", "pass", "positive", "active", "running", "connected")},
	{ToneDebug, wordSet("debug", "trace", "verbose")},
}

var failureWords = wordSet(
	"fail", "failed", "failure", "failing", "error", "errored", "lost", "disconnect", "disconnected",
	"timeout", "timedout", "rejected", "denied", "unavailable", "closed", "expired", "invalid", "stale",
	"broken", "dropped", "unreachable", "refused",
)

// -----------------------------------------------------------------------------

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Tokens splits text into lower-cased letter/digit runs.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// -----------------------------------------------------------------------------

// ClassifyTone maps one level/tone text onto a tone. The second result is
// false when no keyword matched.
func ClassifyTone(text string) (Tone, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if strings.EqualFold(text, string(ToneNeutral)) {
		return ToneNeutral, true
	}
	if strings.EqualFold(text, string(ToneInfo)) {
		return ToneInfo, true
	}
	tokens := Tokens(text)
	for _, entry := range toneTable {
		for _, tok := range tokens {
			if _, ok := entry.words[tok]; ok {
				return entry.tone, true
			}
		}
	}
	return "", false
}

// ToneFromText tries each candidate text in order and falls back to info.
func ToneFromText(texts ...string) Tone {
	for _, t := range texts {
		if tone, ok := ClassifyTone(t); ok {
			return tone
		}
	}
	return ToneInfo
}

// IsFailureText reports whether a reason/cause/code text uses failure vocabulary.
func IsFailureText(text string) bool {
	for _, tok := range Tokens(text) {
		if _, ok := failureWords[tok]; ok {
			return true
		}
	}
	return false
}

// IsAlarming is true for the tones that downgrade data reception.
func (t Tone) IsAlarming() bool {
	return t == ToneError || t == ToneWarning
}

// -----------------------------------------------------------------------------
// Signal side vocabulary
// -----------------------------------------------------------------------------

var (
	strongBuy  = wordSet("long", "bullish")
	strongSell = wordSet("short", "bearish")
	weakBuy    = wordSet("buy")
	weakSell   = wordSet("sell")

	tradingContext = wordSet(
		"signal", "signals", "order", "orders", "trade", "trades", "trading", "execution", "executed", "execute",
		"entry", "exit", "fill", "filled", "fills", "trigger", "triggered", "queue", "queued",
	)

	// Phrases matched by substring since CJK text is not space separated.
	cjkStrongBuy  = []string{"做多", "看涨", "看多"}
	cjkStrongSell = []string{"做空", "看跌", "看空"}
	cjkWeakBuy    = []string{"买入", "买"}
	cjkWeakSell   = []string{"卖出", "卖"}
	cjkContext    = []string{"信号", "订单", "下单", "委托", "交易", "成交", "开仓", "平仓", "触发", "队列"}
)

// simpleTextTokens is the longest text in which a bare buy/sell is trusted
// without trading vocabulary around it.
const simpleTextTokens = 3

// -----------------------------------------------------------------------------

// ClassifySide infers a side from free text. Strong words decide on their
// own; weak words need short text or trading context. Conflicting evidence
// yields no side.
func ClassifySide(text string) (Side, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	tokens := Tokens(text)

	buy, sell := hasAny(tokens, strongBuy) || containsAny(text, cjkStrongBuy),
		hasAny(tokens, strongSell) || containsAny(text, cjkStrongSell)
	if side, ok := decide(buy, sell); ok || buy || sell {
		return side, ok
	}

	buy, sell = hasAny(tokens, weakBuy) || containsAny(text, cjkWeakBuy),
		hasAny(tokens, weakSell) || containsAny(text, cjkWeakSell)
	if !buy && !sell {
		return "", false
	}
	simple := len(tokens) <= simpleTextTokens
	if !simple && !hasAny(tokens, tradingContext) && !containsAny(text, cjkContext) {
		return "", false
	}
	return decide(buy, sell)
}

// ClassifySideValue classifies the value of a field already known to hold a
// side, where a bare "buy" needs no context.
func ClassifySideValue(text string) (Side, bool) {
	switch NormalizeName(text) {
	case "buy", "b", "long", "bid", "bullish", "openlong", "buytoopen", "买", "买入", "做多":
		return SideBuy, true
	case "sell", "s", "short", "ask", "offer", "bearish", "openshort", "selltoopen", "卖", "卖出", "做空":
		return SideSell, true
	}
	return ClassifySide(text)
}

func decide(buy, sell bool) (Side, bool) {
	switch {
	case buy && !sell:
		return SideBuy, true
	case sell && !buy:
		return SideSell, true
	}
	return "", false
}

func hasAny(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
