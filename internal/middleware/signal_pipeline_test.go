package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)        {}
func (nopMetrics) RecordDuplicate(string)             {}
func (nopMetrics) RecordArchived(string, string)      {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) SetConnectionState(drepo.ConnState) {}
func (nopMetrics) RecordSubscribe(int)                {}
func (nopMetrics) SetStoreSize(int)                   {}

type fakeArchive struct {
	mu       sync.Mutex
	enabled  bool
	failures int
	got      []string
}

func (a *fakeArchive) Enabled() bool { return a.enabled }

func (a *fakeArchive) Process(_ context.Context, s *models.Signal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return fmt.Errorf("archive down")
	}
	a.got = append(a.got, s.ID)
	return nil
}

func (a *fakeArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.got)
}

func validSignal(id string) *models.Signal {
	return &models.Signal{
		ID:          id,
		AssetSymbol: "BTC",
		Type:        models.SignalSentiment,
		Strength:    60,
		Timestamp:   models.EventTime{Time: time.Now()},
	}
}

func TestPipelineDeliversValidSignals(t *testing.T) {
	var delivered []models.Signal
	arch := &fakeArchive{enabled: true}
	p := NewSignalPipeline(func(s models.Signal) { delivered = append(delivered, s) }, arch, nopMetrics{})

	if err := p.Process(context.Background(), validSignal("s1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(delivered) != 1 || delivered[0].ID != "s1" {
		t.Fatalf("expected delivery to feed, got %v", delivered)
	}
	if arch.count() != 1 {
		t.Fatalf("expected archive write, got %d", arch.count())
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	var delivered int
	p := NewSignalPipeline(func(models.Signal) { delivered++ }, nil, nopMetrics{})

	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil signal must be rejected")
	}
	bad := validSignal("s1")
	bad.Strength = 200
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("out-of-range strength must be rejected")
	}
	if delivered != 0 {
		t.Fatalf("rejected signals must not reach the feed")
	}
}

func TestPipelineArchiveDisabledSkipsArchiver(t *testing.T) {
	arch := &fakeArchive{enabled: false}
	p := NewSignalPipeline(func(models.Signal) {}, arch, nopMetrics{})

	if err := p.Process(context.Background(), validSignal("s1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if arch.count() != 0 {
		t.Fatalf("disabled archiver must not be written")
	}
}

func TestPipelineBuffersFailedArchiveWrites(t *testing.T) {
	var delivered int
	arch := &fakeArchive{enabled: true, failures: 1}
	p := NewSignalPipeline(func(models.Signal) { delivered++ }, arch, nopMetrics{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Process(ctx, validSignal("s1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("feed delivery must not wait on the archive")
	}

	// The buffered write lands once the backend recovers.
	deadline := time.Now().Add(2 * time.Second)
	for arch.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered archive write never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPipelineThrottlesPerAsset(t *testing.T) {
	var delivered int
	p := NewSignalPipeline(func(models.Signal) { delivered++ }, nil, nopMetrics{}, WithMaxRPS(2))

	for i := 0; i < 10; i++ {
		if err := p.Process(context.Background(), validSignal(fmt.Sprintf("s%d", i))); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if delivered >= 10 {
		t.Fatalf("expected throttling to drop part of the burst, delivered %d", delivered)
	}
	if delivered == 0 {
		t.Fatalf("the first tokens of the burst must pass")
	}
}
