package kernel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub_PubImmediateDeliversSynchronously(t *testing.T) {
	ps := NewPubSub()
	defer ps.Shutdown()

	var got string
	ps.Subscribe("topic", func(topic string, data interface{}) {
		got = data.(string)
	})
	ps.PubImmediate("topic", "hello")
	assert.Equal(t, "hello", got)
}

func TestPubSub_PubDeliversAsynchronously(t *testing.T) {
	ps := NewPubSub()
	defer ps.Shutdown()

	var mu sync.Mutex
	received := make([]string, 0)
	ps.Subscribe("topic", func(topic string, data interface{}) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, data.(string))
	})

	ps.Pub("topic", "a")
	ps.Pub("topic", "b")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, received)
}

func TestPubSub_ShutdownDrainsQueuedDeliveries(t *testing.T) {
	ps := NewPubSub()

	var mu sync.Mutex
	delivered := false
	ps.Subscribe("topic", func(topic string, data interface{}) {
		mu.Lock()
		defer mu.Unlock()
		delivered = true
	})

	ps.Pub("topic", "payload")
	ps.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, delivered, "queued publish should be delivered during shutdown")
}

func TestPubSub_PubAfterShutdownPromotesToImmediate(t *testing.T) {
	ps := NewPubSub()

	var got string
	ps.Subscribe("topic", func(topic string, data interface{}) {
		got = data.(string)
	})

	ps.Shutdown()
	ps.Pub("topic", "late")

	assert.Equal(t, "late", got, "Pub after Shutdown should deliver synchronously, not drop")
}

func TestPubSub_NoSubscribersIsHarmless(t *testing.T) {
	ps := NewPubSub()
	defer ps.Shutdown()
	assert.NotPanics(t, func() {
		ps.PubImmediate("nobody-listens", 42)
		ps.Pub("nobody-listens", 42)
	})
}
