package utils

import (
	"testing"
	"time"

	"runtime-observer/src/logger"
)

func fallbackCalendar(t *testing.T) *TradingCalendar {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return &TradingCalendar{MIC: "xnys", Fallback: true, Timezone: ny}
}

func TestMICForSymbol(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"AAPL":    "xnys",
		"VOD.L":   "xlon",
		"7203.T":  "xtks",
		"0700.hk": "xhkg",
		"SHOP.TO": "xtse",
		"BTC-USD": "xnys",
	}
	for symbol, want := range cases {
		if got := MICForSymbol(symbol); got != want {
			t.Fatalf("MICForSymbol(%q) = %q, want %q", symbol, got, want)
		}
	}
}

func TestFallbackCalendarHours(t *testing.T) {
	t.Parallel()

	cal := fallbackCalendar(t)
	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"weekday session", time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC), true},
		{"before open", time.Date(2024, 6, 12, 13, 0, 0, 0, time.UTC), false},
		{"after close", time.Date(2024, 6, 12, 21, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := cal.IsOpenOnMinute(tc.at); got != tc.open {
			t.Fatalf("%s: IsOpenOnMinute = %v, want %v", tc.name, got, tc.open)
		}
	}
}

func TestAnyMarketOpenAt(t *testing.T) {
	t.Parallel()

	cal := fallbackCalendar(t)
	ms := &MarketScheduler{
		Calendars: map[string]*TradingCalendar{"AAPL": cal, "MSFT": cal},
		Logger:    logger.NewLogger(nil, "test"),
		Now:       time.Now,
	}
	if !ms.AnyMarketOpenAt(time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("market should be open mid-session")
	}
	if ms.AnyMarketOpenAt(time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("market should be closed on saturday")
	}

	ms.Now = func() time.Time { return time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC) }
	if ms.AnyMarketOpen() {
		t.Fatalf("AnyMarketOpen should use the injected clock")
	}

	empty := &MarketScheduler{Calendars: map[string]*TradingCalendar{}}
	if !empty.AnyMarketOpenAt(time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("a scheduler without symbols never gates polling")
	}
}

func TestPollInterval(t *testing.T) {
	t.Parallel()

	if PollInterval(0) != time.Second || PollInterval(5) != 5*time.Second {
		t.Fatalf("PollInterval = %v, %v", PollInterval(0), PollInterval(5))
	}
}
