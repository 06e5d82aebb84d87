package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventTimeAcceptsISOAndEpoch(t *testing.T) {
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var iso EventTime
	if err := json.Unmarshal([]byte(`"2025-06-01T12:00:00Z"`), &iso); err != nil {
		t.Fatalf("iso: %v", err)
	}
	if !iso.Equal(want) {
		t.Fatalf("iso parsed %v", iso.Time)
	}

	var epoch EventTime
	if err := json.Unmarshal([]byte(`1748779200`), &epoch); err != nil {
		t.Fatalf("epoch: %v", err)
	}
	if !epoch.Equal(want) {
		t.Fatalf("epoch parsed %v", epoch.Time)
	}

	var millis EventTime
	if err := json.Unmarshal([]byte(`1748779200000`), &millis); err != nil {
		t.Fatalf("millis: %v", err)
	}
	if !millis.Equal(want) {
		t.Fatalf("millis parsed %v", millis.Time)
	}

	var garbage EventTime
	if err := json.Unmarshal([]byte(`"not-a-time"`), &garbage); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSignalDecode(t *testing.T) {
	payload := `{
		"id": "sig-1",
		"assetId": "asset-9",
		"assetSymbol": "BTC",
		"type": "sentiment",
		"strength": 82,
		"timestamp": "2025-06-01T12:00:00Z",
		"sources": [
			{"platform": "twitter", "mentions": 320},
			{"platform": "price", "priceChange": 4.2, "currentPrice": 101000, "previousPrice": 97000, "timeframe": "1h"}
		]
	}`
	var s Signal
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(s.Sources) != 2 || s.Sources[1].PriceChange != 4.2 {
		t.Fatalf("sources decoded wrong: %+v", s.Sources)
	}
	got := s.Platforms()
	if len(got) != 2 || got[0] != PlatformTwitter || got[1] != PlatformPrice {
		t.Fatalf("platforms: %v", got)
	}
}

func TestSignalValidateRejects(t *testing.T) {
	ok := Signal{
		ID:          "s1",
		AssetSymbol: "BTC",
		Type:        SignalPrice,
		Strength:    50,
		Timestamp:   EventTime{Time: time.Now()},
	}

	cases := []struct {
		name   string
		mutate func(*Signal)
	}{
		{"empty id", func(s *Signal) { s.ID = "" }},
		{"empty symbol", func(s *Signal) { s.AssetSymbol = "" }},
		{"unknown type", func(s *Signal) { s.Type = "vibes" }},
		{"strength below range", func(s *Signal) { s.Strength = -1 }},
		{"strength above range", func(s *Signal) { s.Strength = 101 }},
		{"zero timestamp", func(s *Signal) { s.Timestamp = EventTime{} }},
	}
	for _, tc := range cases {
		s := ok
		tc.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}
}

func TestPlatformsDeduplicates(t *testing.T) {
	s := Signal{Sources: []SignalSource{
		{Platform: PlatformTwitter},
		{Platform: PlatformTwitter},
		{Platform: PlatformReddit},
	}}
	got := s.Platforms()
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct platforms, got %v", got)
	}
}
