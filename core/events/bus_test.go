package events_test

import (
	"sync"
	"testing"
	"time"

	"booksync/core/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PerTopicOrdering(t *testing.T) {
	bus := events.NewBus(64, nil)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	bus.Subscribe(events.TopicSyncProgress, func(ev events.Event) {
		mu.Lock()
		got = append(got, ev.Payload["seq"].(int))
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		bus.Publish(events.TopicSyncProgress, map[string]any{"seq": i})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	bus.Close()

	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, want, got)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := events.NewBus(8, nil)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Subscribe(events.TopicValidationCompleted, func(ev events.Event) {
			wg.Done()
		})
	}

	bus.Publish(events.TopicValidationCompleted, map[string]any{"total": 3})

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := events.NewBus(1, nil)
	defer bus.Close()

	// The dispatcher sits inside a slow handler while we overflow the buffer.
	block := make(chan struct{})
	bus.Subscribe(events.TopicBatchProcessed, func(ev events.Event) {
		<-block
	})

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			bus.Publish(events.TopicBatchProcessed, map[string]any{"batch": i})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full topic buffer")
	}
	close(block)

	require.Greater(t, bus.Dropped(), uint64(0))
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := events.NewBus(8, nil)
	bus.Subscribe(events.TopicReadyForSync, func(ev events.Event) {})
	bus.Close()

	// Must not panic on a closed bus.
	bus.Publish(events.TopicReadyForSync, map[string]any{"count": 1})
}
