package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPublish_RoutesByType(t *testing.T) {
	m := NewManager(true)

	var mu sync.Mutex
	var specific, all []Event
	m.Subscribe(EventProviderDeleted, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		specific = append(specific, e)
		return nil
	})
	m.SubscribeAll(func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, e)
		return errors.New("logged, not propagated")
	})

	m.PublishMutation(context.Background(), EventProviderDeleted, "p1", "")
	m.PublishMutation(context.Background(), EventRewardCreated, "r1", "")
	m.Wait()

	if len(specific) != 1 {
		t.Fatalf("Expected 1 provider event, got %d", len(specific))
	}
	got := specific[0].Data
	if got.Resource != "provider" || got.Action != "deleted" || got.TargetID != "p1" || !got.Succeeded {
		t.Errorf("Unexpected data %+v", got)
	}
	if len(all) != 2 {
		t.Errorf("Expected catch-all to see 2 events, got %d", len(all))
	}
}

func TestPublishFailure(t *testing.T) {
	m := NewManager(true)

	done := make(chan Event, 1)
	m.Subscribe(EventMutationFailed, func(ctx context.Context, e Event) error {
		done <- e
		return nil
	})

	m.PublishFailure(context.Background(), EventRewardTypeUpdated, "rt1", "name taken")
	e := <-done

	if e.Data.Resource != "reward_type" || e.Data.Action != "updated" || e.Data.Succeeded {
		t.Errorf("Unexpected failure data %+v", e.Data)
	}
	if e.Data.Message != "name taken" {
		t.Errorf("Expected message to be carried, got %q", e.Data.Message)
	}
}

func TestHandlersOutliveRequestContext(t *testing.T) {
	m := NewManager(true)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	m.Subscribe(EventChallengeCreated, func(hctx context.Context, e Event) error {
		errs <- hctx.Err()
		return nil
	})

	cancel()
	m.PublishMutation(ctx, EventChallengeCreated, "c1", "")

	if err := <-errs; err != nil {
		t.Errorf("Expected handler context to be live, got %v", err)
	}
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(false)
	called := false
	m.SubscribeAll(func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	m.PublishMutation(context.Background(), EventWithdrawalApproved, "w1", "")
	m.Wait()

	if called {
		t.Error("Expected disabled manager to drop events")
	}
}

func TestShutdownWaitsForConcurrentPublish(t *testing.T) {
	m := NewManager(true)

	var started, finished atomic.Int32
	m.SubscribeAll(func(ctx context.Context, e Event) error {
		started.Add(1)
		defer finished.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.PublishMutation(context.Background(), EventRewardCreated, "r1", "")
		}()
	}
	m.Shutdown()

	if s, f := started.Load(), finished.Load(); s != f {
		t.Errorf("Shutdown returned with %d of %d handlers still running", s-f, s)
	}
	wg.Wait()
	m.Wait()
}
