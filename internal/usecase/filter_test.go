package usecase

import (
	"testing"
	"time"

	"SignalFeed/internal/domain/models"
)

func apply(t *testing.T, signals []models.Signal, f models.SignalFilter, now time.Time) []models.Signal {
	t.Helper()
	s := NewSignalStore()
	s.InsertMany(signals, models.OriginFetch)
	var e FilterEngine
	return e.Apply(s.All(), f, now)
}

func ids(signals []models.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.ID
	}
	return out
}

func TestFilterEmptySetsMeanUnrestricted(t *testing.T) {
	now := baseTime
	in := []models.Signal{
		sig("s1", "BTC", models.SignalSentiment, 80, now),
		sig("s2", "ETH", models.SignalNarrative, 60, now),
		sig("s3", "SOL", models.SignalPrice, 40, now),
	}
	f := models.SignalFilter{
		TimeRange: models.RangeAll,
		Types:     nil, // no restriction
		Sources:   nil,
		SortBy:    models.SortLatest,
	}
	got := apply(t, in, f, now)
	if len(got) != 3 {
		t.Fatalf("empty type/source sets must pass everything, got %v", ids(got))
	}
}

func TestFilterByTypeAndStrength(t *testing.T) {
	now := baseTime
	in := []models.Signal{
		sig("weak", "BTC", models.SignalSentiment, 30, now),
		sig("strong", "BTC", models.SignalSentiment, 90, now),
		sig("price", "BTC", models.SignalPrice, 95, now),
	}
	f := models.SignalFilter{
		TimeRange:   models.RangeAll,
		Types:       []models.SignalType{models.SignalSentiment},
		MinStrength: 50,
		SortBy:      models.SortLatest,
	}
	got := apply(t, in, f, now)
	if len(got) != 1 || got[0].ID != "strong" {
		t.Fatalf("expected only the strong sentiment signal, got %v", ids(got))
	}
}

func TestFilterBySourcePlatform(t *testing.T) {
	now := baseTime
	reddit := sig("r1", "BTC", models.SignalSentiment, 70, now)
	reddit.Sources = []models.SignalSource{{Platform: models.PlatformReddit, Mentions: 5}}
	price := sig("p1", "BTC", models.SignalPrice, 70, now)
	price.Sources = []models.SignalSource{{Platform: models.PlatformPrice, PriceChange: 4.2}}

	f := models.SignalFilter{
		TimeRange: models.RangeAll,
		Sources:   []models.SourcePlatform{models.PlatformReddit},
		SortBy:    models.SortLatest,
	}
	got := apply(t, []models.Signal{reddit, price}, f, now)
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected only the reddit-sourced signal, got %v", ids(got))
	}
}

func TestFilterTimeRanges(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	in := []models.Signal{
		sig("recent", "BTC", models.SignalSentiment, 50, now.Add(-30*time.Minute)),
		sig("today", "BTC", models.SignalSentiment, 50, now.Add(-5*time.Hour)),
		sig("yesterday", "BTC", models.SignalSentiment, 50, now.AddDate(0, 0, -1)),
		sig("old", "BTC", models.SignalSentiment, 50, now.AddDate(0, 0, -10)),
	}

	cases := []struct {
		rng  models.TimeRange
		want []string
	}{
		{models.RangeHour, []string{"recent"}},
		{models.RangeToday, []string{"recent", "today"}},
		{models.RangeYesterday, []string{"yesterday"}},
		{models.RangeAll, []string{"recent", "today", "yesterday", "old"}},
	}
	for _, tc := range cases {
		f := models.SignalFilter{TimeRange: tc.rng, SortBy: models.SortLatest}
		got := apply(t, in, f, now)
		if len(got) != len(tc.want) {
			t.Fatalf("range %s: expected %v, got %v", tc.rng, tc.want, ids(got))
		}
	}
}

func TestFilterYesterdayIsCalendarDayNotRolling24h(t *testing.T) {
	// 01:00 local: 23h ago is yesterday by calendar even though it is
	// within a rolling 24h window.
	now := time.Date(2025, 6, 2, 1, 0, 0, 0, time.Local)
	in := []models.Signal{sig("s1", "BTC", models.SignalSentiment, 50, now.Add(-23*time.Hour))}

	f := models.SignalFilter{TimeRange: models.RangeYesterday, SortBy: models.SortLatest}
	if got := apply(t, in, f, now); len(got) != 1 {
		t.Fatalf("23h ago at 01:00 falls on yesterday's date, got %v", ids(got))
	}
	f.TimeRange = models.RangeToday
	if got := apply(t, in, f, now); len(got) != 0 {
		t.Fatalf("23h ago at 01:00 is not today, got %v", ids(got))
	}
}

func TestSortLatestNewestFirst(t *testing.T) {
	now := baseTime
	in := []models.Signal{
		sig("older", "BTC", models.SignalSentiment, 50, now.Add(-2*time.Hour)),
		sig("newest", "BTC", models.SignalSentiment, 50, now),
		sig("mid", "BTC", models.SignalSentiment, 50, now.Add(-time.Hour)),
	}
	f := models.SignalFilter{TimeRange: models.RangeAll, SortBy: models.SortLatest}
	got := apply(t, in, f, now)
	want := []string{"newest", "mid", "older"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	}
}

func TestSortStrengthStableOnTies(t *testing.T) {
	now := baseTime
	in := []models.Signal{
		sig("a", "BTC", models.SignalSentiment, 70, now),
		sig("b", "ETH", models.SignalSentiment, 70, now.Add(time.Minute)),
		sig("top", "SOL", models.SignalSentiment, 90, now),
	}
	f := models.SignalFilter{TimeRange: models.RangeAll, SortBy: models.SortStrength}
	got := apply(t, in, f, now)
	want := []string{"top", "a", "b"} // ties keep store order
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}
	}
}

func TestFilterNeverMutatesStore(t *testing.T) {
	now := baseTime
	s := NewSignalStore()
	s.InsertMany([]models.Signal{
		sig("s1", "BTC", models.SignalSentiment, 20, now),
		sig("s2", "ETH", models.SignalPrice, 80, now),
	}, models.OriginFetch)

	var e FilterEngine
	f := models.SignalFilter{TimeRange: models.RangeAll, MinStrength: 50, SortBy: models.SortStrength}
	if got := e.Apply(s.All(), f, now); len(got) != 1 {
		t.Fatalf("expected one record above the floor, got %v", ids(got))
	}

	// Relaxing the filter recovers the hidden record from the same store.
	f.MinStrength = 0
	if got := e.Apply(s.All(), f, now); len(got) != 2 {
		t.Fatalf("filtering must be non-destructive, got %v", ids(got))
	}
}
