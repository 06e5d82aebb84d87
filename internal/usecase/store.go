package usecase

import (
	"iter"
	"slices"

	"SignalFeed/internal/domain/models"
)

// SignalStore is the single source of truth for the feed: an
// insertion-ordered, id-keyed collection merged from the fetch and push
// delivery paths. Exactly one record per id exists at any time; a duplicate
// insert is a no-op (first-write-wins). Push records are prepended
// (most-recent-arrival-first), fetch records appended to the known history.
//
// The store itself is not goroutine-safe; Feed serializes all access.
type SignalStore struct {
	records []models.Signal
	ids     map[string]struct{}
}

func NewSignalStore() *SignalStore {
	return &SignalStore{ids: make(map[string]struct{})}
}

// InsertMany merges signals into the store. Returns the number of records
// actually inserted (duplicates by id are skipped).
func (s *SignalStore) InsertMany(signals []models.Signal, origin models.Origin) int {
	fresh := make([]models.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.ID == "" {
			continue
		}
		if _, dup := s.ids[sig.ID]; dup {
			continue
		}
		s.ids[sig.ID] = struct{}{}
		fresh = append(fresh, sig)
	}
	if len(fresh) == 0 {
		return 0
	}

	switch origin {
	case models.OriginPush:
		// Prepend preserving arrival order within the batch.
		s.records = append(fresh, s.records...)
	default:
		s.records = append(s.records, fresh...)
	}
	return len(fresh)
}

// Contains reports whether a record with the given id is present.
func (s *SignalStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of records.
func (s *SignalStore) Len() int { return len(s.records) }

// All yields the current contents in insertion-merged order. The sequence is
// restartable and iterates a snapshot, so callers may range it more than once
// and the store may be mutated between (not during) iterations.
func (s *SignalStore) All() iter.Seq[models.Signal] {
	snapshot := slices.Clone(s.records)
	return func(yield func(models.Signal) bool) {
		for _, sig := range snapshot {
			if !yield(sig) {
				return
			}
		}
	}
}

// Reset clears all records. Used on logout or watched-scope change: history
// is scoped to the watched asset set and must never bleed across scopes.
func (s *SignalStore) Reset() {
	s.records = nil
	s.ids = make(map[string]struct{})
}
