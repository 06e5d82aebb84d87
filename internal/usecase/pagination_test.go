package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
)

type mergeSink struct {
	mu     sync.Mutex
	merged [][]models.Signal
	resets int
}

func (m *mergeSink) merge(s []models.Signal) {
	m.mu.Lock()
	m.merged = append(m.merged, s)
	m.mu.Unlock()
}

func (m *mergeSink) reset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

func newPagerForTest(src drepo.HistorySource) (*PaginationController, *mergeSink) {
	sink := &mergeSink{}
	p := NewPaginationController(src, nopMetrics{}, sink.merge, sink.reset)
	return p, sink
}

func TestLoadNextAdvancesPage(t *testing.T) {
	src := &fakeHistory{pages: map[int]*drepo.HistoryPage{
		1: {Signals: []models.Signal{sig("s1", "BTC", models.SignalSentiment, 50, baseTime)}, HasMore: true},
		2: {Signals: []models.Signal{sig("s2", "BTC", models.SignalSentiment, 50, baseTime)}, HasMore: false},
	}}
	p, sink := newPagerForTest(src)
	p.SetScope([]string{"btc-id"})

	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if p.Page() != 2 || !p.HasMore() {
		t.Fatalf("after page 1: page=%d hasMore=%v", p.Page(), p.HasMore())
	}
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if p.HasMore() {
		t.Fatalf("expected exhaustion after final page")
	}
	if len(sink.merged) != 2 {
		t.Fatalf("expected 2 merges, got %d", len(sink.merged))
	}
	// Exhausted: further calls must not hit the source.
	before := src.callCount()
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("post-exhaustion: %v", err)
	}
	if src.callCount() != before {
		t.Fatalf("exhausted pager must not fetch")
	}
}

func TestLoadNextNoScopeNoFetch(t *testing.T) {
	src := &fakeHistory{}
	p, _ := newPagerForTest(src)
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.callCount() != 0 {
		t.Fatalf("empty scope must not fetch")
	}
}

func TestLoadNextSingleFlight(t *testing.T) {
	block := make(chan struct{})
	src := &fakeHistory{
		pages: map[int]*drepo.HistoryPage{1: {HasMore: true}},
		block: block,
	}
	p, _ := newPagerForTest(src)
	p.SetScope([]string{"btc-id"})

	done := make(chan struct{})
	go func() {
		_ = p.LoadNext(context.Background())
		close(done)
	}()
	for !p.InFlight() {
		time.Sleep(time.Millisecond)
	}

	// Re-entrant call while outstanding is a silent no-op.
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("overlapping call: %v", err)
	}
	close(block)
	<-done

	if got := src.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", got)
	}
}

func TestFetchErrorKeepsCursorForRetry(t *testing.T) {
	src := &fakeHistory{err: &models.FetchError{Page: 1, Err: context.DeadlineExceeded}}
	p, _ := newPagerForTest(src)
	p.SetScope([]string{"btc-id"})

	if err := p.LoadNext(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
	if p.Page() != 1 || !p.HasMore() {
		t.Fatalf("failed fetch must not advance: page=%d hasMore=%v", p.Page(), p.HasMore())
	}
	if p.Err() == "" {
		t.Fatalf("error must be surfaced in state")
	}

	// The same request retries cleanly once the source recovers.
	src.err = nil
	src.pages = map[int]*drepo.HistoryPage{1: {HasMore: false}}
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if p.Err() != "" {
		t.Fatalf("stale error must clear on success")
	}
}

func TestMalformedResponseStopsPagination(t *testing.T) {
	src := &fakeHistory{err: &models.MalformedResponseError{Detail: "data missing"}}
	p, sink := newPagerForTest(src)
	p.SetScope([]string{"btc-id"})

	if err := p.LoadNext(context.Background()); err == nil {
		t.Fatalf("expected malformed error")
	}
	if p.HasMore() {
		t.Fatalf("malformed payload must stop pagination")
	}
	if len(sink.merged) != 0 {
		t.Fatalf("nothing may be merged from a malformed payload")
	}
}

func TestScopeChangeResetsAndDiscardsStaleResponse(t *testing.T) {
	block := make(chan struct{})
	src := &fakeHistory{
		pages: map[int]*drepo.HistoryPage{
			1: {Signals: []models.Signal{sig("stale", "BTC", models.SignalSentiment, 50, baseTime)}, HasMore: true},
		},
		block: block,
	}
	p, sink := newPagerForTest(src)
	p.SetScope([]string{"btc-id"})

	done := make(chan struct{})
	go func() {
		_ = p.LoadNext(context.Background())
		close(done)
	}()
	for !p.InFlight() {
		time.Sleep(time.Millisecond)
	}

	// Scope flips while the old fetch is outstanding.
	p.SetScope([]string{"eth-id"})
	close(block)
	<-done

	if got := sink.resets; got != 2 {
		t.Fatalf("each SetScope resets the store, got %d resets", got)
	}
	if len(sink.merged) != 0 {
		t.Fatalf("stale response must be discarded, merged %d batches", len(sink.merged))
	}
	if p.Page() != 1 {
		t.Fatalf("new scope starts at page 1, got %d", p.Page())
	}

	// The new scope fetches normally.
	src.mu.Lock()
	src.block = nil
	src.pages = map[int]*drepo.HistoryPage{
		1: {Signals: []models.Signal{sig("fresh", "ETH", models.SignalSentiment, 50, baseTime)}, HasMore: false},
	}
	src.mu.Unlock()
	if err := p.LoadNext(context.Background()); err != nil {
		t.Fatalf("fresh scope fetch: %v", err)
	}
	if len(sink.merged) != 1 || sink.merged[0][0].ID != "fresh" {
		t.Fatalf("expected only the fresh batch, got %v", sink.merged)
	}
}
