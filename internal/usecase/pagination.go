package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
)

// PaginationController drives "load earlier history" requests against the
// REST source. It tracks the page cursor and exhaustion flag, guards against
// overlapping requests with an in-flight flag, and uses an epoch counter so a
// late-arriving response for a previously watched scope is discarded instead
// of merged.
type PaginationController struct {
	src     drepo.HistorySource
	merge   func([]models.Signal)
	reset   func()
	metrics drepo.Metrics

	mu       sync.Mutex
	scope    []string // asset ids, current watch scope
	page     int
	hasMore  bool
	epoch    uint64
	inFlight bool
	errMsg   string
}

// NewPaginationController creates a controller. merge receives fetched
// records (origin fetch); reset is invoked when the scope changes, before the
// first page of the new scope is requested.
func NewPaginationController(src drepo.HistorySource, metrics drepo.Metrics, merge func([]models.Signal), reset func()) *PaginationController {
	return &PaginationController{
		src:     src,
		merge:   merge,
		reset:   reset,
		metrics: metrics,
		page:    1,
		hasMore: true,
	}
}

// SetScope replaces the watched asset ids. The page cursor restarts at 1,
// exhaustion is cleared, and the downstream store is reset so stale history
// from the previous scope never bleeds into the new view. Any fetch still in
// flight belongs to the old epoch and will be discarded on arrival.
func (p *PaginationController) SetScope(assetIDs []string) {
	p.mu.Lock()
	p.scope = slices.Clone(assetIDs)
	p.page = 1
	p.hasMore = true
	p.epoch++
	p.inFlight = false
	p.errMsg = ""
	reset := p.reset
	p.mu.Unlock()

	if reset != nil {
		reset()
	}
}

// LoadNext fetches the next history page. A call while a fetch is outstanding
// is a no-op, not queued. On success the page advances and records flow to
// the store; on failure the page stays at its last confirmed value so the
// same call retries cleanly. A malformed payload additionally clears hasMore
// to stop automatic pagination.
func (p *PaginationController) LoadNext(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight || !p.hasMore || len(p.scope) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	p.errMsg = ""
	page, epoch := p.page, p.epoch
	scope := slices.Clone(p.scope)
	p.mu.Unlock()

	start := time.Now()
	res, err := p.src.FetchPage(ctx, scope, page)
	p.metrics.RecordLatency("history_fetch", time.Since(start).Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch {
		// Scope changed while the request was outstanding; the response
		// belongs to history the store no longer holds.
		p.metrics.RecordError("fetch_stale_epoch")
		return nil
	}
	p.inFlight = false

	if err != nil {
		var mal *models.MalformedResponseError
		if errors.As(err, &mal) {
			p.hasMore = false
			p.metrics.RecordError("fetch_malformed")
		} else {
			p.metrics.RecordError("fetch")
		}
		p.errMsg = err.Error()
		return err
	}

	p.page = page + 1
	p.hasMore = res.HasMore
	p.merge(res.Signals)
	return nil
}

// InFlight reports whether a fetch is outstanding.
func (p *PaginationController) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// HasMore reports whether the source may have earlier history.
func (p *PaginationController) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Page returns the next page to request (last confirmed + 1).
func (p *PaginationController) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Err returns the user-visible error from the last fetch, or "".
func (p *PaginationController) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}
