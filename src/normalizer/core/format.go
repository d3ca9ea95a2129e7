package core

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Settings is the read-only display configuration threaded through the
// engine. It is built once at startup.
type Settings struct {
	Resolver TimestampResolver
	Language language.Tag
	YesLabel string
	NoLabel  string
}

// NewSettings resolves zone and locale names, falling back to UTC and English.
func NewSettings(zone, locale, layout, yes, no string) Settings {
	tag := language.English
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			tag = t
		}
	}
	if yes == "" {
		yes = "Yes"
	}
	if no == "" {
		no = "No"
	}
	return Settings{
		Resolver: NewTimestampResolver(zone, layout),
		Language: tag,
		YesLabel: yes,
		NoLabel:  no,
	}
}

// DefaultSettings displays in UTC with English formatting.
func DefaultSettings() Settings {
	return NewSettings("", "", "", "", "")
}

// -----------------------------------------------------------------------------

// Formatter holds the locale-bound printer and collator for one build. Neither
// is safe for concurrent use, so a Formatter must not outlive its call.
type Formatter struct {
	settings Settings
	printer  *message.Printer
	collator *collate.Collator
}

// NewFormatter prepares call-local formatting state.
func (s Settings) NewFormatter() *Formatter {
	tag := s.Language
	if tag == language.Und {
		tag = language.English
	}
	return &Formatter{
		settings: s,
		printer:  message.NewPrinter(tag),
		collator: collate.New(tag, collate.IgnoreCase),
	}
}

// Resolver exposes the timestamp resolver of the settings.
func (f *Formatter) Resolver() TimestampResolver {
	return f.settings.Resolver
}

// -----------------------------------------------------------------------------

// FractionDigits picks the precision for a non-integer value by magnitude.
func FractionDigits(v float64) int {
	a := math.Abs(v)
	switch {
	case a >= 100:
		return 0
	case a >= 10:
		return 1
	case a >= 1:
		return 2
	}
	return 4
}

// Number formats integers with grouping and other values with a
// magnitude-adaptive number of fraction digits.
func (f *Formatter) Number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return f.printer.Sprintf("%d", int64(v))
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(FractionDigits(v))))
}

// Boolean renders the configured yes/no label.
func (f *Formatter) Boolean(b bool) string {
	if b {
		return f.settings.YesLabel
	}
	return f.settings.NoLabel
}

// MetricValue formats a metric candidate. The second result is false when the
// value has nothing displayable.
func (f *Formatter) MetricValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		return f.Boolean(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", false
		}
		if n, ok := parseNumber(s); ok {
			return f.Number(n), true
		}
		if ts, ok := f.settings.Resolver.ParseString(s, false); ok {
			return f.settings.Resolver.Format(ts), true
		}
		return s, true
	case []any, map[string]any:
		return ToDisplayString(t)
	}
	if n, ok := ToNumber(v); ok {
		return f.Number(n), true
	}
	return ToDisplayString(v)
}

// Compare orders labels with the locale collation.
func (f *Formatter) Compare(a, b string) int {
	return f.collator.CompareString(a, b)
}

// -----------------------------------------------------------------------------

// Humanize turns a field key such as "msgCount" or "avg_latency_ms" into a
// sentence-case label ("Msg count", "Avg latency ms").
func Humanize(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	if len(words) == 0 {
		return strings.TrimSpace(key)
	}
	label := strings.Join(words, " ")
	first := []rune(label)
	first[0] = unicode.ToUpper(first[0])
	return string(first)
}
