package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"epdcore/pkg/domain"
)

type captureSubscriber struct {
	mu        sync.Mutex
	snapshots [][]CombinedBuildup
}

func (c *captureSubscriber) receive(snapshot []CombinedBuildup) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, snapshot)
	c.mu.Unlock()
}

func (c *captureSubscriber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *captureSubscriber) last() []CombinedBuildup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return nil
	}
	return c.snapshots[len(c.snapshots)-1]
}

func TestSubscribeImmediateSnapshotWhenIdle(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())

	sub := &captureSubscriber{}
	unsubscribe := svc.Subscribe(sub.receive)
	defer unsubscribe()

	if sub.count() != 1 {
		t.Fatalf("expected immediate snapshot, got %d", sub.count())
	}
	snapshot := sub.last()
	if len(snapshot) != 1 || snapshot[0].ID != buildup.ID {
		t.Fatalf("snapshot: %+v", snapshot)
	}
	if snapshot[0].Processed.FullyProcessed {
		t.Fatal("nothing processed yet")
	}
}

func TestSubscribeNotifiedOnSettledChange(t *testing.T) {
	svc, store, _, clock := newTestService(t)
	buildup := createBuildup(t, store, beamBuildup())
	clock.Advance(time.Minute)

	sub := &captureSubscriber{}
	unsubscribe := svc.Subscribe(sub.receive)

	if _, err := svc.ProcessBuildup(context.Background(), buildup.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sub.count() != 2 {
		t.Fatalf("expected snapshot after settled change, got %d", sub.count())
	}
	if !sub.last()[0].Processed.FullyProcessed {
		t.Fatal("post-change snapshot must carry the processed result")
	}

	// A cache hit changes nothing, so no new snapshot is published.
	if _, err := svc.ProcessBuildup(context.Background(), buildup.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if sub.count() != 2 {
		t.Fatalf("cache hit must not publish, got %d snapshots", sub.count())
	}

	unsubscribe()
	clock.Advance(time.Minute)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateBuildup(buildup.ID, func(b *Buildup) error {
			b.Quantity = 20
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.ProcessBuildup(context.Background(), buildup.ID); err != nil {
		t.Fatalf("third process: %v", err)
	}
	if sub.count() != 2 {
		t.Fatalf("unsubscribed handler must not be invoked, got %d", sub.count())
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	unsubscribe := svc.Subscribe(nil)
	unsubscribe() // must be a safe no-op
}
