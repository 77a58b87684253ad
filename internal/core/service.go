package core

import (
	"context"
	"sync"
	"time"

	"epdcore/internal/docstore"
	"epdcore/internal/infra/persistence/memory"
	"epdcore/pkg/domain"
)

// Service orchestrates the impact pipeline: it decides which buildups
// need (re)processing, runs the mapper and calculator over them, caches
// the derived results, and notifies subscribers of settled changes.
type Service struct {
	store   domain.PersistentStore
	mapper  *Mapper
	cache   *ResultCache
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time

	mu           sync.Mutex
	inflight     map[int64]*inflightCall
	processing   int
	errs         map[int64]string
	needsRefresh bool

	subMu  sync.Mutex
	subs   map[int64]func([]CombinedBuildup)
	subSeq int64
}

// inflightCall deduplicates concurrent processing of one buildup id onto
// a single computation; late callers wait on done and share the outcome.
type inflightCall struct {
	done   chan struct{}
	result CombinedBuildup
	err    error
}

// Option customizes service construction.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder observing every
// processing operation.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer installs a tracer wrapping every processing operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithClock overrides the timestamp source, used by staleness tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCache substitutes the result cache, e.g. one pre-warmed from a
// previous run.
func WithCache(cache *ResultCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// NewService constructs a service reading buildups from store and
// resolving product references through resolver.
func NewService(store domain.PersistentStore, resolver ProductResolver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		mapper:   NewMapper(resolver),
		cache:    NewResultCache(),
		logger:   noopLogger{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		inflight: make(map[int64]*inflightCall),
		errs:     make(map[int64]string),
		subs:     make(map[int64]func([]CombinedBuildup)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store and
// document store with the given rules engine. Intended for tests and
// ephemeral runs.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	store := memory.NewStore(engine)
	catalog := NewCatalog(store, docstore.NewMemory())
	return NewService(store, catalog, opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Cache returns the result cache owned by the service.
func (s *Service) Cache() *ResultCache { return s.cache }

func (s *Service) now() time.Time { return s.nowFn() }

// ProcessSingleBuildupImpacts derives the processed result for one
// buildup without consulting the cache. A buildup without results yields
// the empty partial shape; a mapping or calculation failure degrades to
// the same shape with the error recorded against the buildup id.
func (s *Service) ProcessSingleBuildupImpacts(ctx context.Context, buildup Buildup) ProcessedBuildup {
	if buildup.Results == nil {
		s.clearError(buildup.ID)
		return domain.EmptyProcessedBuildup(buildup.ID)
	}
	mapped, err := s.mapper.MapAll(ctx, buildup.Products, buildup.Results)
	if err != nil {
		s.recordError(buildup.ID, err)
		s.logger.Warn("buildup processing degraded to partial result", "buildup_id", buildup.ID, "error", err)
		return domain.EmptyProcessedBuildup(buildup.ID)
	}

	result := ProcessedBuildup{
		BuildupID:         buildup.ID,
		MappedProducts:    make(map[string][]ProcessedProduct, len(mapped)),
		ProcessedProducts: []ProcessedProduct{},
		FullyProcessed:    true,
		LastLocalUpdate:   s.now(),
	}
	for _, elementID := range sortedKeys(mapped) {
		for _, entity := range mapped[elementID] {
			processed := ProcessedProduct{
				Product:    entity.Entity,
				EPDObject:  entity.Entity.EPD,
				Impacts:    CalculateImpacts(entity.Entity.EPD, entity.Quantity),
				Quantity:   entity.Quantity,
				MappingKey: entity.MappingKey,
				ElementID:  elementID,
			}
			result.MappedProducts[elementID] = append(result.MappedProducts[elementID], processed)
			result.ProcessedProducts = append(result.ProcessedProducts, processed)
		}
	}
	s.clearError(buildup.ID)
	return result
}

// ProcessBuildupsImpacts processes a batch concurrently. Results come
// back in input order regardless of completion order, and one buildup's
// failure never aborts its siblings: failures surface as partial results.
func (s *Service) ProcessBuildupsImpacts(ctx context.Context, buildups []Buildup) []ProcessedBuildup {
	results := make([]ProcessedBuildup, len(buildups))
	var wg sync.WaitGroup
	for i, buildup := range buildups {
		wg.Add(1)
		go func(i int, buildup Buildup) {
			defer wg.Done()
			results[i] = s.ProcessSingleBuildupImpacts(ctx, buildup)
		}(i, buildup)
	}
	wg.Wait()
	return results
}

// ProcessBuildup loads one buildup, reprocesses it if its cached result
// is missing or stale, stores the outcome, and returns the combined
// view. Concurrent calls for the same id share a single computation.
func (s *Service) ProcessBuildup(ctx context.Context, id int64) (CombinedBuildup, error) {
	ctx, finish := s.instrument(ctx, "process_buildup")
	combined, err := s.processBuildup(ctx, id)
	finish(err)
	return combined, err
}

func (s *Service) processBuildup(ctx context.Context, id int64) (CombinedBuildup, error) {
	s.mu.Lock()
	if call, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return CombinedBuildup{}, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[id] = call
	s.processing++
	s.mu.Unlock()

	combined, changed, err := s.computeBuildup(ctx, id)
	call.result, call.err = combined, err

	s.mu.Lock()
	delete(s.inflight, id)
	s.processing--
	settled := s.processing == 0
	s.mu.Unlock()
	close(call.done)

	if changed && settled {
		s.publish()
	}
	return combined, err
}

func (s *Service) computeBuildup(ctx context.Context, id int64) (CombinedBuildup, bool, error) {
	buildup, ok := s.store.GetBuildup(id)
	if !ok {
		return CombinedBuildup{}, false, domain.ErrNotFound{Entity: domain.EntityBuildup, ID: id}
	}
	s.mu.Lock()
	refresh := s.needsRefresh
	s.mu.Unlock()
	if cached, ok := s.cache.Get(id); ok && !refresh && !cached.NeedsReprocessing(buildup) {
		return CombinedBuildup{Buildup: buildup, Processed: cached}, false, nil
	}
	result := s.ProcessSingleBuildupImpacts(ctx, buildup)
	s.cache.Set(result)
	return CombinedBuildup{Buildup: buildup, Processed: result}, true, nil
}

// ProcessAllBuildups partitions the stored buildups into stale and
// current before doing any work, processes only the stale ones as a
// batch, refreshes the cache, and returns the combined view of every
// buildup in id order.
func (s *Service) ProcessAllBuildups(ctx context.Context) ([]CombinedBuildup, error) {
	ctx, finish := s.instrument(ctx, "process_all_buildups")
	combined, err := s.processAllBuildups(ctx)
	finish(err)
	return combined, err
}

func (s *Service) processAllBuildups(ctx context.Context) ([]CombinedBuildup, error) {
	s.mu.Lock()
	s.processing++
	refresh := s.needsRefresh
	s.mu.Unlock()

	buildups := s.store.ListBuildups()
	var stale []Buildup
	for _, buildup := range buildups {
		cached, ok := s.cache.Get(buildup.ID)
		if !ok || refresh || cached.NeedsReprocessing(buildup) {
			stale = append(stale, buildup)
		}
	}

	for _, result := range s.ProcessBuildupsImpacts(ctx, stale) {
		s.cache.Set(result)
	}

	combined := make([]CombinedBuildup, 0, len(buildups))
	for _, buildup := range buildups {
		processed, ok := s.cache.Get(buildup.ID)
		if !ok {
			processed = domain.EmptyProcessedBuildup(buildup.ID)
		}
		combined = append(combined, CombinedBuildup{Buildup: buildup, Processed: processed})
	}

	s.mu.Lock()
	if refresh {
		s.needsRefresh = false
	}
	s.processing--
	settled := s.processing == 0
	s.mu.Unlock()

	if len(stale) > 0 && settled {
		s.publish()
	}
	s.logger.Info("processed buildups", "total", len(buildups), "reprocessed", len(stale))
	return combined, nil
}

// GetCombinedBuildup merges one buildup with its cached processed result
// without triggering any computation. Buildups never processed come back
// with the empty partial shape.
func (s *Service) GetCombinedBuildup(id int64) (CombinedBuildup, error) {
	buildup, ok := s.store.GetBuildup(id)
	if !ok {
		return CombinedBuildup{}, domain.ErrNotFound{Entity: domain.EntityBuildup, ID: id}
	}
	processed, ok := s.cache.Get(id)
	if !ok {
		processed = domain.EmptyProcessedBuildup(id)
	}
	return CombinedBuildup{Buildup: buildup, Processed: processed}, nil
}

// GetAllCombinedBuildups returns every stored buildup merged with its
// cached result, in id order. Pure read.
func (s *Service) GetAllCombinedBuildups() []CombinedBuildup {
	buildups := s.store.ListBuildups()
	combined := make([]CombinedBuildup, 0, len(buildups))
	for _, buildup := range buildups {
		processed, ok := s.cache.Get(buildup.ID)
		if !ok {
			processed = domain.EmptyProcessedBuildup(buildup.ID)
		}
		combined = append(combined, CombinedBuildup{Buildup: buildup, Processed: processed})
	}
	return combined
}

// MarkAllStale sets the full-refresh flag: the next processing pass
// reprocesses every buildup regardless of timestamps.
func (s *Service) MarkAllStale() {
	s.mu.Lock()
	s.needsRefresh = true
	s.mu.Unlock()
}

// ProcessingError returns the error message recorded when the given
// buildup last degraded to a partial result.
func (s *Service) ProcessingError(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.errs[id]
	return msg, ok
}

func (s *Service) recordError(id int64, err error) {
	s.mu.Lock()
	s.errs[id] = err.Error()
	s.mu.Unlock()
}

func (s *Service) clearError(id int64) {
	s.mu.Lock()
	delete(s.errs, id)
	s.mu.Unlock()
}
