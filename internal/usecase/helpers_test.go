package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	applogger "SignalFeed/pkg/logger"
)

// nopMetrics satisfies repository.Metrics for tests.
type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)        {}
func (nopMetrics) RecordDuplicate(string)             {}
func (nopMetrics) RecordArchived(string, string)      {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) SetConnectionState(drepo.ConnState) {}
func (nopMetrics) RecordSubscribe(int)                {}
func (nopMetrics) SetStoreSize(int)                   {}

// fakeStream records subscription traffic and lets tests flip the
// connection state.
type fakeStream struct {
	mu           sync.Mutex
	state        drepo.ConnState
	subscribes   [][]string
	unsubscribes int
	fail         bool
}

func (s *fakeStream) Open(context.Context, string, drepo.StreamHooks) error { return nil }
func (s *fakeStream) Close() error                                          { return nil }

func (s *fakeStream) State() drepo.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeStream) setState(st drepo.ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *fakeStream) Subscribe(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("subscribe refused")
	}
	cp := make([]string, len(symbols))
	copy(cp, symbols)
	s.subscribes = append(s.subscribes, cp)
	return nil
}

func (s *fakeStream) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribes++
	return nil
}

func (s *fakeStream) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribes)
}

// fakeHistory serves scripted pages keyed by page number.
type fakeHistory struct {
	mu      sync.Mutex
	pages   map[int]*drepo.HistoryPage
	err     error
	calls   int
	lastIDs []string
	block   chan struct{} // when set, FetchPage waits on it
}

func (h *fakeHistory) FetchPage(ctx context.Context, assetIDs []string, page int) (*drepo.HistoryPage, error) {
	h.mu.Lock()
	h.calls++
	h.lastIDs = append([]string(nil), assetIDs...)
	block := h.block
	h.mu.Unlock()

	if block != nil {
		<-block
	}
	if h.err != nil {
		return nil, h.err
	}
	if p, ok := h.pages[page]; ok {
		return p, nil
	}
	return &drepo.HistoryPage{HasMore: false}, nil
}

func (h *fakeHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testLogger() *applogger.Logger {
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	return l
}

func sig(id, symbol string, typ models.SignalType, strength float64, ts time.Time) models.Signal {
	return models.Signal{
		ID:          id,
		AssetID:     "a-" + symbol,
		AssetSymbol: symbol,
		Type:        typ,
		Strength:    strength,
		Timestamp:   models.EventTime{Time: ts},
		Sources:     []models.SignalSource{{Platform: models.PlatformTwitter, Mentions: 10}},
	}
}
