package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
)

// SignalArchiver fans accepted push signals out to the configured archive
// backend. The archive is write-only: the feed is never rehydrated from it.
type SignalArchiver struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

func NewSignalArchiver(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *SignalArchiver {
	return &SignalArchiver{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Enabled reports whether archival is configured at all.
func (a *SignalArchiver) Enabled() bool {
	return a.backend != "" && a.backend != "none"
}

// Process routes a single signal to the configured backend.
func (a *SignalArchiver) Process(ctx context.Context, s *models.Signal) error {
	if s == nil {
		return fmt.Errorf("signal is nil")
	}
	if !a.Enabled() {
		return nil
	}

	start := time.Now()
	var err error
	switch a.backend {
	case "kafka":
		err = a.pub.Publish(ctx, s)
	case "clickhouse":
		err = a.store.Store(ctx, s)
	default:
		err = fmt.Errorf("unknown archive backend: %s", a.backend)
	}

	if err != nil {
		a.metrics.RecordError("archive")
		return fmt.Errorf("archive signal %s: %w", s.ID, err)
	}

	a.metrics.RecordArchived(a.backend, s.AssetSymbol)
	a.metrics.RecordLatency("archive", time.Since(start).Seconds())
	return nil
}

// ProcessBatch routes multiple signals in one backend call.
func (a *SignalArchiver) ProcessBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 || !a.Enabled() {
		return nil
	}

	start := time.Now()
	var err error
	switch a.backend {
	case "kafka":
		err = a.pub.PublishBatch(ctx, signals)
	case "clickhouse":
		err = a.store.StoreBatch(ctx, signals)
	default:
		err = fmt.Errorf("unknown archive backend: %s", a.backend)
	}

	if err != nil {
		a.metrics.RecordError("archive_batch")
		return fmt.Errorf("archive batch: %w", err)
	}

	for _, s := range signals {
		a.metrics.RecordArchived(a.backend, s.AssetSymbol)
	}
	a.metrics.RecordLatency("archive_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (a *SignalArchiver) Close() {
	if a.pub != nil {
		_ = a.pub.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
