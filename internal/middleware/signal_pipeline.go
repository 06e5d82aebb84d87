package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	"SignalFeed/internal/service/ratelimit"
)

// ArchiveProc is the minimal archival interface the pipeline needs.
type ArchiveProc interface {
	Process(ctx context.Context, s *models.Signal) error
	Enabled() bool
}

// SignalPipeline sits between the push channel and the feed. It validates
// inbound signals, throttles per asset, delivers accepted signals to the
// feed, and forwards them to the archiver with a retry buffer for when the
// archive backend is unavailable. Delivery to the feed is never buffered:
// the in-memory store must see a signal the moment it is accepted.
type SignalPipeline struct {
	deliver func(models.Signal)
	archive ArchiveProc
	metrics drepo.Metrics
	limiter *ratelimit.Limiter

	maxRPS  float64
	bufSize int
	bufCh   chan *models.Signal
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*SignalPipeline)

// WithMaxRPS sets the max accepted signals per second per asset.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the archive retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewSignalPipeline creates a pipeline delivering to the given feed callback
// and archiver.
func NewSignalPipeline(deliver func(models.Signal), archive ArchiveProc, metrics drepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		deliver: deliver,
		archive: archive,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Signal, p.bufSize)
	return p
}

// Start launches background flushing of buffered archive writes.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.archive.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, delivers to the feed, and archives.
func (p *SignalPipeline) Process(ctx context.Context, s *models.Signal) error {
	start := time.Now()
	if s == nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("signal nil")
	}
	if err := s.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.limiter.Allow(s.AssetSymbol, p.maxRPS, p.maxRPS) {
		// throttled; drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	p.deliver(*s)

	if p.archive != nil && p.archive.Enabled() {
		if err := p.archive.Process(ctx, s); err != nil {
			p.metrics.RecordError("pipeline_archive")
			select {
			case p.bufCh <- s:
			default:
				p.metrics.RecordError("pipeline_buffer_full")
			}
		}
	}

	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}
