package stream_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingObserver struct {
	mu      sync.Mutex
	last    int
	dropped int
}

func (o *countingObserver) SubscribersChanged(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.last = count
}

func (o *countingObserver) SubscriberDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.dropped++
}

func sequentialIDs() func() string {
	var n atomic.Int64

	return func() string {
		return fmt.Sprintf("sub-%d", n.Add(1))
	}
}

func newTestHub(opts ...stream.HubOption) *stream.Hub {
	return stream.NewHub(sequentialIDs(), zap.NewNop(), opts...)
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	return out
}

func TestHub_Subscribe(t *testing.T) {
	hub := newTestHub()

	assert.Zero(t, hub.Count())

	a := hub.Subscribe()
	b := hub.Subscribe()

	assert.Equal(t, 2, hub.Count())
	assert.NotEqual(t, a.ID(), b.ID())

	a.Close()
	a.Close()

	assert.Equal(t, 1, hub.Count())

	_, open := <-a.Messages()
	assert.False(t, open)
}

func TestHub_Broadcast(t *testing.T) {
	t.Run("every subscriber receives the event", func(t *testing.T) {
		hub := newTestHub()
		a := hub.Subscribe()
		b := hub.Subscribe()

		hub.Broadcast(&analytics.Event{ID: "evt-1", EventType: "click"})

		for _, s := range []*stream.Subscriber{a, b} {
			msg := decode(t, <-s.Messages())
			assert.Equal(t, "evt-1", msg["id"])
			assert.Equal(t, "click", msg["eventType"])
		}
	})

	t.Run("late joiners get no replay", func(t *testing.T) {
		hub := newTestHub()
		hub.Broadcast(&analytics.Event{ID: "before"})

		s := hub.Subscribe()
		hub.Broadcast(&analytics.Event{ID: "after"})

		assert.Equal(t, "after", decode(t, <-s.Messages())["id"])
		assert.Empty(t, s.Messages())
	})

	t.Run("preserves broadcast order", func(t *testing.T) {
		hub := newTestHub(stream.WithBuffer(10))
		s := hub.Subscribe()

		for i := range 5 {
			hub.Broadcast(&analytics.Event{ID: fmt.Sprintf("e%d", i)})
		}

		for i := range 5 {
			assert.Equal(t, fmt.Sprintf("e%d", i), decode(t, <-s.Messages())["id"])
		}
	})

	t.Run("slow subscriber is dropped without blocking others", func(t *testing.T) {
		observer := &countingObserver{}
		hub := newTestHub(stream.WithBuffer(1), stream.WithObserver(observer))
		slow := hub.Subscribe()
		fast := hub.Subscribe()

		hub.Broadcast(&analytics.Event{ID: "e1"})
		<-fast.Messages()
		hub.Broadcast(&analytics.Event{ID: "e2"})

		assert.Equal(t, 1, hub.Count())
		assert.Equal(t, "e2", decode(t, <-fast.Messages())["id"])

		// The slow subscriber keeps what was buffered, then sees the close.
		assert.Equal(t, "e1", decode(t, <-slow.Messages())["id"])

		_, open := <-slow.Messages()
		assert.False(t, open)

		slow.Close()

		observer.mu.Lock()
		defer observer.mu.Unlock()

		assert.Equal(t, 1, observer.dropped)
		assert.Equal(t, 1, observer.last)
	})
}

func TestHub_Close(t *testing.T) {
	hub := newTestHub()
	s := hub.Subscribe()

	hub.Close()

	assert.Zero(t, hub.Count())

	_, open := <-s.Messages()
	assert.False(t, open)

	s.Close()
}

func TestHub_ConcurrentUse(t *testing.T) {
	hub := newTestHub(stream.WithBuffer(1000))

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s := hub.Subscribe()
			defer s.Close()

			hub.Broadcast(&analytics.Event{ID: "x"})
		}()
	}

	wg.Wait()

	assert.Zero(t, hub.Count())
}
