package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SignalFeed/pkg/util"
)

// SignalType classifies what kind of market event a signal reports.
type SignalType string

const (
	SignalSentiment SignalType = "sentiment"
	SignalNarrative SignalType = "narrative"
	SignalPrice     SignalType = "price"
)

// SourcePlatform tags the provenance of a signal source entry.
type SourcePlatform string

const (
	PlatformTwitter SourcePlatform = "twitter"
	PlatformReddit  SourcePlatform = "reddit"
	PlatformPrice   SourcePlatform = "price"
)

// SignalSource is one provenance entry. Mentions is set for social platforms;
// the price fields are set when Platform is "price".
type SignalSource struct {
	Platform      SourcePlatform `json:"platform"`
	Mentions      int            `json:"mentions,omitempty"`
	PriceChange   float64        `json:"priceChange,omitempty"`
	CurrentPrice  float64        `json:"currentPrice,omitempty"`
	PreviousPrice float64        `json:"previousPrice,omitempty"`
	Timeframe     string         `json:"timeframe,omitempty"`
}

// EventTime accepts both ISO-8601 strings and epoch numbers on the wire.
// Upstream emits whichever its producer happened to use.
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	if parsed, ok := util.ParseTime(s); ok {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Signal is an immutable market event tied to one asset. ID is the merge key:
// the store keeps at most one record per ID.
type Signal struct {
	ID          string         `json:"id"`
	AssetID     string         `json:"assetId"`
	AssetSymbol string         `json:"assetSymbol"`
	AssetName   string         `json:"assetName"`
	AssetLogo   string         `json:"assetLogo"`
	Type        SignalType     `json:"type"`
	Strength    float64        `json:"strength"`
	Description string         `json:"description"`
	Timestamp   EventTime      `json:"timestamp"`
	Sources     []SignalSource `json:"sources"`
}

// Platforms returns the distinct provenance platforms of the signal.
func (s *Signal) Platforms() []SourcePlatform {
	out := make([]SourcePlatform, 0, len(s.Sources))
	seen := make(map[SourcePlatform]struct{}, len(s.Sources))
	for _, src := range s.Sources {
		if _, dup := seen[src.Platform]; dup {
			continue
		}
		seen[src.Platform] = struct{}{}
		out = append(out, src.Platform)
	}
	return out
}

// Asset pairs the opaque upstream asset id with its display symbol. The REST
// source is keyed by id, the push channel by symbol.
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

// Origin says which delivery path a signal entered the store through.
type Origin string

const (
	OriginFetch Origin = "fetch"
	OriginPush  Origin = "push"
)

func (s *Signal) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("signal id empty")
	}
	if s.AssetSymbol == "" {
		return fmt.Errorf("signal %s: asset symbol empty", s.ID)
	}
	switch s.Type {
	case SignalSentiment, SignalNarrative, SignalPrice:
	default:
		return fmt.Errorf("signal %s: unknown type %q", s.ID, s.Type)
	}
	if s.Strength < 0 || s.Strength > 100 {
		return fmt.Errorf("signal %s: strength %s out of range", s.ID,
			strconv.FormatFloat(s.Strength, 'f', -1, 64))
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("signal %s: timestamp missing", s.ID)
	}
	return nil
}
