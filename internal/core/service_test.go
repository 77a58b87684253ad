package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"epdcore/internal/infra/persistence/memory"
	"epdcore/pkg/domain"
)

// testClock is a manually advanced time source shared between a store
// and a service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *memory.Store, *stubResolver, *testClock) {
	t.Helper()
	clock := newTestClock()
	store := memory.NewStore(nil)
	store.SetClock(clock.Now)
	resolver := newStubResolver()
	resolver.addProduct(beamProduct())
	svc := NewService(store, resolver, WithClock(clock.Now))
	return svc, store, resolver, clock
}

func createBuildup(t *testing.T, store *memory.Store, buildup Buildup) Buildup {
	t.Helper()
	var created Buildup
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateBuildup(buildup)
		return err
	})
	if err != nil {
		t.Fatalf("create buildup: %v", err)
	}
	return created
}

func beamBuildup() Buildup {
	return Buildup{
		Name:     "Floor slab",
		Quantity: 10,
		Unit:     "m2",
		Products: ProductReferenceMap{"p1": storedRef("src.123", "beam")},
		Results:  map[string]ResultEntry{"p1": {Quantity: floatPtr(5)}},
	}
}

func TestProcessSingleBuildupImpactsScenario(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())

	result := svc.ProcessSingleBuildupImpacts(context.Background(), buildup)
	if !result.FullyProcessed {
		t.Fatal("expected fully processed result")
	}
	if len(result.ProcessedProducts) != 1 {
		t.Fatalf("expected 1 processed product, got %d", len(result.ProcessedProducts))
	}
	processed := result.ProcessedProducts[0]
	if processed.ElementID != "beam" || processed.MappingKey != "p1" {
		t.Fatalf("mapping identifiers: element=%q key=%q", processed.ElementID, processed.MappingKey)
	}
	if processed.Quantity != 5 {
		t.Fatalf("quantity = %v", processed.Quantity)
	}
	if got := processed.Impacts["gwp"].Production; got != 500 {
		t.Fatalf("gwp Production = %v, want 500", got)
	}
	grouped := result.MappedProducts["beam"]
	if len(grouped) != 1 || grouped[0].Product.ID != processed.Product.ID {
		t.Fatalf("grouped products: %+v", result.MappedProducts)
	}
	if result.LastLocalUpdate.IsZero() {
		t.Fatal("expected a computation timestamp")
	}
}

func TestProcessSingleBuildupImpactsNilResults(t *testing.T) {
	svc, store, resolver, _ := newTestService(t)
	buildup := createBuildup(t, store, Buildup{
		Name:     "Unmodeled",
		Products: ProductReferenceMap{"p1": storedRef("src.123", "beam")},
	})

	result := svc.ProcessSingleBuildupImpacts(context.Background(), buildup)
	if result.FullyProcessed {
		t.Fatal("nil results must yield a partial result")
	}
	if len(result.MappedProducts) != 0 || len(result.ProcessedProducts) != 0 {
		t.Fatalf("expected empty shape, got %+v", result)
	}
	if _, ok := svc.ProcessingError(buildup.ID); ok {
		t.Fatal("nil results is not an error")
	}
	if lookups, converts := resolver.calls(); lookups != 0 || converts != 0 {
		t.Fatal("mapper must not run for nil results")
	}
}

func TestProcessSingleBuildupImpactsIdempotent(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())

	first := svc.ProcessSingleBuildupImpacts(context.Background(), buildup)
	second := svc.ProcessSingleBuildupImpacts(context.Background(), buildup)
	first.LastLocalUpdate = time.Time{}
	second.LastLocalUpdate = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestProcessSingleBuildupImpactsRecordsFailure(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	buildup := createBuildup(t, store, Buildup{
		Name:     "Broken",
		Products: ProductReferenceMap{"p1": storedRef("src.123", "beam")},
		Results:  map[string]ResultEntry{},
	})

	result := svc.ProcessSingleBuildupImpacts(context.Background(), buildup)
	if result.FullyProcessed {
		t.Fatal("expected partial result")
	}
	msg, ok := svc.ProcessingError(buildup.ID)
	if !ok {
		t.Fatal("expected a recorded processing error")
	}
	if msg != "Product with ID p1 does not have a corresponding result" {
		t.Fatalf("recorded error = %q", msg)
	}

	// A later successful run clears the recorded error.
	fixed := buildup
	fixed.Results = map[string]ResultEntry{"p1": {Quantity: floatPtr(1)}}
	if got := svc.ProcessSingleBuildupImpacts(context.Background(), fixed); !got.FullyProcessed {
		t.Fatal("expected fixed buildup to process fully")
	}
	if _, ok := svc.ProcessingError(buildup.ID); ok {
		t.Fatal("error should be cleared after success")
	}
}

func TestProcessBuildupsImpactsOrderAndIsolation(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	good1 := createBuildup(t, store, beamBuildup())
	broken := createBuildup(t, store, Buildup{
		Name:     "Broken",
		Products: ProductReferenceMap{"p1": storedRef("src.123", "beam")},
		Results:  map[string]ResultEntry{"other": {Quantity: floatPtr(1)}},
	})
	good2 := createBuildup(t, store, beamBuildup())

	results := svc.ProcessBuildupsImpacts(context.Background(), []Buildup{good1, broken, good2})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].BuildupID != good1.ID || results[1].BuildupID != broken.ID || results[2].BuildupID != good2.ID {
		t.Fatalf("results out of input order: %d, %d, %d",
			results[0].BuildupID, results[1].BuildupID, results[2].BuildupID)
	}
	if !results[0].FullyProcessed || !results[2].FullyProcessed {
		t.Fatal("sibling buildups must be unaffected by a failure")
	}
	if results[1].FullyProcessed {
		t.Fatal("broken buildup must degrade to partial")
	}
	if _, ok := svc.ProcessingError(broken.ID); !ok {
		t.Fatal("expected error recorded for broken buildup")
	}
}

func TestProcessBuildupStaleness(t *testing.T) {
	svc, store, resolver, clock := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())
	ctx := context.Background()

	clock.Advance(time.Minute)
	combined, err := svc.ProcessBuildup(ctx, buildup.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !combined.Processed.FullyProcessed {
		t.Fatal("expected fully processed")
	}
	lookupsAfterFirst, _ := resolver.calls()

	// Unchanged buildup: cache hit, no further lookups.
	if _, err := svc.ProcessBuildup(ctx, buildup.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if lookups, _ := resolver.calls(); lookups != lookupsAfterFirst {
		t.Fatalf("cache hit must not resolve products: %d -> %d", lookupsAfterFirst, lookups)
	}

	// Touch the buildup so updated_at moves past lastLocalUpdate.
	clock.Advance(time.Minute)
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateBuildup(buildup.ID, func(b *Buildup) error {
			b.Name = "Floor slab v2"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update buildup: %v", err)
	}
	if _, err := svc.ProcessBuildup(ctx, buildup.ID); err != nil {
		t.Fatalf("third process: %v", err)
	}
	if lookups, _ := resolver.calls(); lookups != lookupsAfterFirst+1 {
		t.Fatalf("stale buildup must reprocess: %d -> %d", lookupsAfterFirst, lookups)
	}
}

func TestProcessBuildupNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.ProcessBuildup(context.Background(), 999)
	var notFound domain.ErrNotFound
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !errors.As(err, &notFound) || notFound.Entity != domain.EntityBuildup {
		t.Fatalf("expected domain.ErrNotFound for buildup, got %#v", err)
	}
}

func TestProcessAllBuildupsPartitions(t *testing.T) {
	svc, store, resolver, clock := newTestService(t)
	first := createBuildup(t, store, beamBuildup())
	second := createBuildup(t, store, beamBuildup())
	ctx := context.Background()

	clock.Advance(time.Minute)
	combined, err := svc.ProcessAllBuildups(ctx)
	if err != nil {
		t.Fatalf("process all: %v", err)
	}
	if len(combined) != 2 {
		t.Fatalf("expected 2 combined buildups, got %d", len(combined))
	}
	if combined[0].ID != first.ID || combined[1].ID != second.ID {
		t.Fatalf("combined order: %d, %d", combined[0].ID, combined[1].ID)
	}
	lookups, _ := resolver.calls()
	if lookups != 2 {
		t.Fatalf("expected 2 lookups, got %d", lookups)
	}

	// Everything current: second pass does no work.
	if _, err := svc.ProcessAllBuildups(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if after, _ := resolver.calls(); after != lookups {
		t.Fatalf("current buildups must not reprocess: %d -> %d", lookups, after)
	}

	// Forced refresh reprocesses everything once.
	svc.MarkAllStale()
	clock.Advance(time.Minute)
	if _, err := svc.ProcessAllBuildups(ctx); err != nil {
		t.Fatalf("refresh pass: %v", err)
	}
	if after, _ := resolver.calls(); after != lookups+2 {
		t.Fatalf("refresh must reprocess all: %d -> %d", lookups, after)
	}
	// The flag clears after one refresh pass.
	if _, err := svc.ProcessAllBuildups(ctx); err != nil {
		t.Fatalf("post-refresh pass: %v", err)
	}
	if after, _ := resolver.calls(); after != lookups+2 {
		t.Fatalf("refresh flag must clear: lookups %d", after)
	}
}

func TestGetCombinedBuildupPureRead(t *testing.T) {
	svc, store, resolver, _ := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())

	combined, err := svc.GetCombinedBuildup(buildup.ID)
	if err != nil {
		t.Fatalf("get combined: %v", err)
	}
	if combined.Processed.FullyProcessed {
		t.Fatal("unprocessed buildup must come back with the empty shape")
	}
	if combined.Processed.MappedProducts == nil || combined.Processed.ProcessedProducts == nil {
		t.Fatal("empty shape must be renderable")
	}
	if lookups, converts := resolver.calls(); lookups != 0 || converts != 0 {
		t.Fatal("pure read must not trigger computation")
	}

	if _, err := svc.GetCombinedBuildup(12345); err == nil {
		t.Fatal("expected not-found error")
	}

	all := svc.GetAllCombinedBuildups()
	if len(all) != 1 || all[0].ID != buildup.ID {
		t.Fatalf("all combined: %+v", all)
	}
}

// gateResolver blocks product lookups until released, so tests can hold a
// computation in flight.
type gateResolver struct {
	*stubResolver
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateResolver) ProductByURI(ctx context.Context, uri string) (Product, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.stubResolver.ProductByURI(ctx, uri)
}

func TestProcessBuildupDeduplicatesConcurrentCalls(t *testing.T) {
	clock := newTestClock()
	store := memory.NewStore(nil)
	store.SetClock(clock.Now)
	stub := newStubResolver()
	stub.addProduct(beamProduct())
	gate := &gateResolver{
		stubResolver: stub,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewService(store, gate, WithClock(clock.Now))
	buildup := createBuildup(t, store, beamBuildup())
	clock.Advance(time.Minute)
	ctx := context.Background()

	type outcome struct {
		combined CombinedBuildup
		err      error
	}
	results := make(chan outcome, 2)
	go func() {
		c, err := svc.ProcessBuildup(ctx, buildup.ID)
		results <- outcome{c, err}
	}()
	<-gate.entered // first call is mid-computation
	go func() {
		c, err := svc.ProcessBuildup(ctx, buildup.ID)
		results <- outcome{c, err}
	}()
	// Give the second caller a moment to attach to the in-flight call.
	time.Sleep(10 * time.Millisecond)
	close(gate.release)

	for i := 0; i < 2; i++ {
		out := <-results
		if out.err != nil {
			t.Fatalf("caller %d: %v", i, out.err)
		}
		if !out.combined.Processed.FullyProcessed {
			t.Fatalf("caller %d got partial result", i)
		}
	}
	if lookups, _ := stub.calls(); lookups != 1 {
		t.Fatalf("expected a single shared computation, got %d lookups", lookups)
	}
}
