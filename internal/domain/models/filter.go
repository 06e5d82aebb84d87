package models

// TimeRange restricts signals by event time.
type TimeRange string

const (
	RangeHour      TimeRange = "hour"
	RangeToday     TimeRange = "today"
	RangeYesterday TimeRange = "yesterday"
	RangeAll       TimeRange = "all"
)

// SortBy selects the comparator applied to the filtered view.
type SortBy string

const (
	SortLatest   SortBy = "latest"
	SortStrength SortBy = "strength"
)

// SignalFilter is the user-owned filter configuration. Empty Types/Sources
// mean "no restriction"; the defaults start full, so both conventions agree
// at session start.
type SignalFilter struct {
	TimeRange   TimeRange        `json:"timeRange"`
	Types       []SignalType     `json:"types"`
	MinStrength float64          `json:"minStrength"`
	Sources     []SourcePlatform `json:"sources"`
	SortBy      SortBy           `json:"sortBy"`
}

// DefaultFilter returns the session-start configuration: all time, all types,
// all sources, no strength floor, newest first.
func DefaultFilter() SignalFilter {
	return SignalFilter{
		TimeRange:   RangeAll,
		Types:       []SignalType{SignalSentiment, SignalNarrative, SignalPrice},
		MinStrength: 0,
		Sources:     []SourcePlatform{PlatformTwitter, PlatformReddit, PlatformPrice},
		SortBy:      SortLatest,
	}
}
