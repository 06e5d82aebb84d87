package usecase

import (
	"context"
	"sync"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	applogger "SignalFeed/pkg/logger"
)

// Feed is the facade rendering collaborators talk to: it owns the filter
// configuration, the store, the pagination controller, and the subscription
// tracker, and exposes the consistent filtered view plus its mutators.
//
// Lock discipline: f.mu guards the store and filter. The pagination
// controller has its own lock and calls back into f.mu (merge/reset), so Feed
// must never invoke controller methods while holding f.mu.
type Feed struct {
	mu     sync.Mutex
	store  *SignalStore
	filter models.SignalFilter
	assets []models.Asset

	engine  FilterEngine
	pager   *PaginationController
	tracker *SubscriptionTracker
	metrics drepo.Metrics
	log     *applogger.Logger

	now func() time.Time
}

func NewFeed(src drepo.HistorySource, tracker *SubscriptionTracker, metrics drepo.Metrics, log *applogger.Logger) *Feed {
	f := &Feed{
		store:   NewSignalStore(),
		filter:  models.DefaultFilter(),
		tracker: tracker,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
	f.pager = NewPaginationController(src, metrics, f.mergeFetched, f.resetStore)
	return f
}

// State returns the view handed to rendering collaborators.
func (f *Feed) State() models.FeedStateResponse {
	isLoading := f.pager.InFlight()
	hasMore := f.pager.HasMore()
	errMsg := f.pager.Err()

	f.mu.Lock()
	signals := f.engine.Apply(f.store.All(), f.filter, f.now())
	f.mu.Unlock()

	if signals == nil {
		signals = []models.Signal{}
	}
	return models.FeedStateResponse{
		Signals:   signals,
		IsLoading: isLoading,
		HasMore:   hasMore,
		Error:     errMsg,
	}
}

// HandlePush merges one push-delivered signal into the store. Duplicate ids
// are dropped here (first-write-wins), not at the connection.
func (f *Feed) HandlePush(sig models.Signal) {
	f.mu.Lock()
	inserted := f.store.InsertMany([]models.Signal{sig}, models.OriginPush)
	size := f.store.Len()
	f.mu.Unlock()

	if inserted == 0 {
		f.metrics.RecordDuplicate(string(models.OriginPush))
		return
	}
	f.metrics.RecordSignal(string(models.OriginPush), sig.AssetSymbol)
	f.metrics.SetStoreSize(size)
}

// UpdateFilters applies a partial filter update in place.
func (f *Feed) UpdateFilters(req models.UpdateFiltersRequest) models.SignalFilter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.TimeRange != nil {
		f.filter.TimeRange = models.TimeRange(*req.TimeRange)
	}
	if req.Types != nil {
		types := make([]models.SignalType, 0, len(*req.Types))
		for _, t := range *req.Types {
			types = append(types, models.SignalType(t))
		}
		f.filter.Types = types
	}
	if req.MinStrength != nil {
		f.filter.MinStrength = *req.MinStrength
	}
	if req.Sources != nil {
		sources := make([]models.SourcePlatform, 0, len(*req.Sources))
		for _, s := range *req.Sources {
			sources = append(sources, models.SourcePlatform(s))
		}
		f.filter.Sources = sources
	}
	if req.SortBy != nil {
		f.filter.SortBy = models.SortBy(*req.SortBy)
	}
	return f.filter
}

// ResetFilters restores the session-start defaults.
func (f *Feed) ResetFilters() models.SignalFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = models.DefaultFilter()
	return f.filter
}

// Filter returns a copy of the current filter configuration.
func (f *Feed) Filter() models.SignalFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

// LoadMore requests the next history page for the current scope.
func (f *Feed) LoadMore(ctx context.Context) error {
	return f.pager.LoadNext(ctx)
}

// SetScope replaces the watched asset set: one subscribe transition on the
// push channel, a store reset, and a fresh first-page fetch. Stale history
// from the previous scope never reaches the new view.
func (f *Feed) SetScope(ctx context.Context, assets []models.Asset) error {
	ids := make([]string, 0, len(assets))
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
		symbols = append(symbols, a.Symbol)
	}

	f.mu.Lock()
	f.assets = assets
	f.mu.Unlock()

	if err := f.tracker.SetScope(symbols); err != nil {
		// Subscription failures are surfaced but do not block the REST path;
		// the tracker replays the scope on the next connect.
		f.log.Warn("scope subscribe failed", applogger.Error(err))
		f.metrics.RecordError("subscribe")
	}

	f.pager.SetScope(ids)
	if len(ids) == 0 {
		return nil
	}
	return f.pager.LoadNext(ctx)
}

// Scope returns the currently watched assets.
func (f *Feed) Scope() []models.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, len(f.assets))
	copy(out, f.assets)
	return out
}

// Pager exposes the pagination controller for lifecycle wiring.
func (f *Feed) Pager() *PaginationController { return f.pager }

func (f *Feed) mergeFetched(signals []models.Signal) {
	f.mu.Lock()
	inserted := f.store.InsertMany(signals, models.OriginFetch)
	size := f.store.Len()
	f.mu.Unlock()

	if dropped := len(signals) - inserted; dropped > 0 {
		for i := 0; i < dropped; i++ {
			f.metrics.RecordDuplicate(string(models.OriginFetch))
		}
	}
	for _, s := range signals {
		f.metrics.RecordSignal(string(models.OriginFetch), s.AssetSymbol)
	}
	f.metrics.SetStoreSize(size)
}

func (f *Feed) resetStore() {
	f.mu.Lock()
	f.store.Reset()
	f.mu.Unlock()
	f.metrics.SetStoreSize(0)
}
