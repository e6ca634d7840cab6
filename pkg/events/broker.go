// Package events implements the container's signal sink: a fan-out bus
// that instances publish Signals into, and that external subscribers (the
// caller-attached sink, internal metrics) drain independently. Per-instance
// order is preserved; signals from different instances may interleave.
package events

import (
	"sync"

	"github.com/cuemby/hive/pkg/types"
)

// Subscriber is a channel that receives signals fanned out by the Broker.
type Subscriber chan types.Signal

// Broker manages signal subscriptions and distribution. It is the
// container-wide signal sink described in spec §4.D/§9: a single field of
// the container value, attached before the first load.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	signalCh    chan types.Signal
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new, unstarted signal broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		signalCh:    make(chan types.Signal, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops distribution. Idempotent.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a new channel that receives every signal published
// from this point on.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Emit publishes a signal for fan-out. Safe for concurrent use by many
// instance goroutines; per-instance call order is preserved because each
// instance only ever emits from its own serialized call path.
func (b *Broker) Emit(signal types.Signal) {
	select {
	case b.signalCh <- signal:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case signal := <-b.signalCh:
			b.broadcast(signal)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(signal types.Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- signal:
		default:
			// Subscriber buffer full; drop rather than block the bus.
		}
	}
}
