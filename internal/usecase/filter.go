package usecase

import (
	"iter"
	"slices"
	"time"

	"SignalFeed/internal/domain/models"
)

// FilterEngine turns a SignalFilter into a derived view of the store. Apply
// is a pure function: it never mutates the store and is recomputed on every
// filter or store change, so it can be tested in isolation.
type FilterEngine struct{}

// Apply filters and sorts the given store view. Empty Types/Sources mean "no
// restriction". Calendar ranges (today, yesterday) compare local wall-clock
// date components, not a rolling 24h window. The sort is stable: ties retain
// the store's relative order.
func (FilterEngine) Apply(view iter.Seq[models.Signal], f models.SignalFilter, now time.Time) []models.Signal {
	var out []models.Signal
	for sig := range view {
		if !passesType(sig, f.Types) {
			continue
		}
		if sig.Strength < f.MinStrength {
			continue
		}
		if !passesSource(sig, f.Sources) {
			continue
		}
		if !passesTimeRange(sig, f.TimeRange, now) {
			continue
		}
		out = append(out, sig)
	}

	switch f.SortBy {
	case models.SortStrength:
		slices.SortStableFunc(out, func(a, b models.Signal) int {
			switch {
			case a.Strength > b.Strength:
				return -1
			case a.Strength < b.Strength:
				return 1
			default:
				return 0
			}
		})
	default: // latest
		slices.SortStableFunc(out, func(a, b models.Signal) int {
			return b.Timestamp.Compare(a.Timestamp.Time)
		})
	}
	return out
}

func passesType(s models.Signal, types []models.SignalType) bool {
	if len(types) == 0 {
		return true
	}
	return slices.Contains(types, s.Type)
}

func passesSource(s models.Signal, platforms []models.SourcePlatform) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, src := range s.Sources {
		if slices.Contains(platforms, src.Platform) {
			return true
		}
	}
	return false
}

func passesTimeRange(s models.Signal, r models.TimeRange, now time.Time) bool {
	ts := s.Timestamp.Time
	switch r {
	case models.RangeHour:
		return now.Sub(ts) <= time.Hour
	case models.RangeToday:
		return sameDay(ts, now)
	case models.RangeYesterday:
		return sameDay(ts, now.AddDate(0, 0, -1))
	default: // all
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
