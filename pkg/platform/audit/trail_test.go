package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySink fails Append while down is set.
type flakySink struct {
	mu     sync.Mutex
	down   bool
	events []Event
}

func (s *flakySink) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *flakySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *flakySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func startTrail(t *testing.T, trail *Trail) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = trail.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestEmit_NeverBlocks(t *testing.T) {
	// No Run loop draining, tiny buffer, wedged sink: Emit must still return.
	trail := NewTrail(&flakySink{down: true}, WithBufferSize(4))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionPseudonymCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked")
	}
	assert.Equal(t, 4, trail.Pending())
	assert.EqualValues(t, 996, trail.Dropped())
}

func TestTrail_DeliversToSink(t *testing.T) {
	sink := &flakySink{}
	trail := NewTrail(sink, WithFlushInterval(5*time.Millisecond))
	startTrail(t, trail)

	for i := 0; i < 10; i++ {
		trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionMappingDeleted})
	}

	require.Eventually(t, func() bool { return sink.count() == 10 },
		2*time.Second, 10*time.Millisecond)
}

func TestTrail_StampsCategoryAndTimestamp(t *testing.T) {
	sink := &flakySink{}
	trail := NewTrail(sink, WithFlushInterval(5*time.Millisecond))
	startTrail(t, trail)

	trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionReidentApproved})

	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	event := sink.events[0]
	sink.mu.Unlock()
	assert.Equal(t, CategorySecurity, event.Category)
	assert.False(t, event.Timestamp.IsZero())
}

func TestTrail_SpillsAndReplays(t *testing.T) {
	sink := &flakySink{down: true}
	spill := NewMemorySpill()
	trail := NewTrail(sink,
		WithSpill(spill),
		WithFlushInterval(5*time.Millisecond),
	)
	trail.replayInterval = 10 * time.Millisecond
	startTrail(t, trail)

	trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionIdentityResolved})

	// Sink down: the event lands in the spill instead of being lost.
	require.Eventually(t, func() bool { return spill.Len() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, sink.count())

	// Sink recovers: the replay ticker drains the spill.
	sink.setDown(false)
	require.Eventually(t, func() bool { return sink.count() == 1 && spill.Len() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestTrail_DropCallback(t *testing.T) {
	var mu sync.Mutex
	dropped := 0
	trail := NewTrail(&flakySink{down: true},
		WithFlushInterval(5*time.Millisecond),
		WithDropCallback(func(n int) {
			mu.Lock()
			dropped += n
			mu.Unlock()
		}),
	)
	startTrail(t, trail)

	// No spill configured, sink down: undeliverable events are counted out.
	trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionInsightsSuppressed})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dropped == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrail_FinalFlushOnShutdown(t *testing.T) {
	sink := &flakySink{}
	// Long flush interval so only the shutdown flush can deliver.
	trail := NewTrail(sink, WithFlushInterval(time.Hour))
	cancel := startTrail(t, trail)

	trail.Emit(context.Background(), Event{TenantID: "acme", Action: ActionReidentRejected})
	cancel()

	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestMemorySink_Filters(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	require.NoError(t, sink.Append(ctx, Event{TenantID: "acme", Action: ActionPseudonymCreated}))
	require.NoError(t, sink.Append(ctx, Event{TenantID: "acme", Action: ActionMappingDeleted}))
	require.NoError(t, sink.Append(ctx, Event{TenantID: "globex", Action: ActionPseudonymCreated}))

	acme, err := sink.ListByTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	created, err := sink.ListByAction(ctx, "acme", ActionPseudonymCreated)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestActionCategories(t *testing.T) {
	assert.Equal(t, CategoryCompliance, ActionPseudonymCreated.Category())
	assert.Equal(t, CategorySecurity, ActionReidentRequested.Category())
	assert.Equal(t, CategoryOperations, ActionInsightsSuppressed.Category())
	assert.Equal(t, CategoryOperations, Action("unknown").Category())
}
