package kernel

import (
	"sync"

	"github.com/Connor22/hydrus/logger"
)

// Subscriber receives published data on topic.
type Subscriber func(topic string, data interface{})

// PubSub is the process-wide publish/subscribe bus. Pub queues a delivery for
// the background dispatch goroutine; PubImmediate delivers synchronously on
// the calling goroutine. Shutdown promotes every pending Pub delivery to
// PubImmediate so no subscriber misses a final notification during teardown.
type PubSub struct {
	mu          sync.Mutex
	subscribers map[string][]Subscriber
	cond        *sync.Cond
	queue       []pending
	closed      bool

	wg sync.WaitGroup
}

type pending struct {
	topic string
	data  interface{}
}

// NewPubSub constructs an empty bus and starts its dispatch goroutine.
func NewPubSub() *PubSub {
	ps := &PubSub{
		subscribers: make(map[string][]Subscriber),
	}
	ps.cond = sync.NewCond(&ps.mu)
	ps.wg.Add(1)
	go ps.dispatchLoop()
	return ps
}

// Subscribe registers fn to run whenever topic is published.
func (ps *PubSub) Subscribe(topic string, fn Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.subscribers[topic] = append(ps.subscribers[topic], fn)
}

// Pub queues data for topic; subscribers run later on the dispatch goroutine.
// Use this from hot paths where the caller cannot afford to run subscriber
// callbacks inline. Once Shutdown has closed the bus, the dispatch goroutine
// is gone, so Pub promotes to PubImmediate instead of dropping the message.
func (ps *PubSub) Pub(topic string, data interface{}) {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		ps.PubImmediate(topic, data)
		return
	}
	ps.queue = append(ps.queue, pending{topic: topic, data: data})
	ps.cond.Signal()
	ps.mu.Unlock()
}

// PubImmediate delivers data for topic synchronously on the calling goroutine.
func (ps *PubSub) PubImmediate(topic string, data interface{}) {
	ps.mu.Lock()
	subs := append([]Subscriber(nil), ps.subscribers[topic]...)
	ps.mu.Unlock()

	for _, sub := range subs {
		sub(topic, data)
	}
}

func (ps *PubSub) dispatchLoop() {
	defer ps.wg.Done()
	for {
		ps.mu.Lock()
		for len(ps.queue) == 0 && !ps.closed {
			ps.cond.Wait()
		}
		if ps.closed && len(ps.queue) == 0 {
			ps.mu.Unlock()
			return
		}
		item := ps.queue[0]
		ps.queue = ps.queue[1:]
		subs := append([]Subscriber(nil), ps.subscribers[item.topic]...)
		ps.mu.Unlock()

		for _, sub := range subs {
			sub(item.topic, item.data)
		}
	}
}

// Shutdown drains any queued deliveries synchronously (promoting them to
// PubImmediate semantics) and stops the dispatch goroutine. Safe to call once.
func (ps *PubSub) Shutdown() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	drain := ps.queue
	ps.queue = nil
	ps.closed = true
	ps.cond.Broadcast()
	ps.mu.Unlock()

	ps.wg.Wait()

	for _, item := range drain {
		ps.mu.Lock()
		subs := append([]Subscriber(nil), ps.subscribers[item.topic]...)
		ps.mu.Unlock()
		for _, sub := range subs {
			sub(item.topic, item.data)
		}
	}
	logger.KernelCloseInfow("pubsub shutdown complete", "drained", len(drain))
}
