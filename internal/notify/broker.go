// Package notify fans out applied subscription changes to in-process
// consumers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inkpost/internal/metrics"
	"inkpost/internal/model"
)

// SubscriptionChanged describes one applied billing event.
type SubscriptionChanged struct {
	UserID       string     `json:"user_id"`
	PreviousTier model.Tier `json:"previous_tier"`
	Tier         model.Tier `json:"tier"`
	Status       string     `json:"status"`
	EventType    string     `json:"event_type"`
	EventID      string     `json:"event_id"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Handler processes one change. Calls on a single Subscription never overlap.
type Handler func(ctx context.Context, change SubscriptionChanged)

// Broker delivers every published change to every live subscription in
// publish order.
type Broker struct {
	publishMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscription holding up to buffer undelivered
// changes. The buffer is at least one.
func (b *Broker) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		broker: b,
		ch:     make(chan SubscriptionChanged, buffer),
		done:   make(chan struct{}),
	}
	b.subs[s.id] = s
	return s
}

// ErrDropped is returned by Publish when at least one subscription had no
// room for the change.
var ErrDropped = errors.New("subscription change dropped")

// Publish hands change to every subscription without waiting on consumers.
// A subscription whose buffer is full misses the change; Publish then
// returns ErrDropped after offering it to the rest. Concurrent publishers are
// serialised so all subscriptions observe the same order.
func (b *Broker) Publish(ctx context.Context, change SubscriptionChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	dropped := 0
	for _, s := range b.snapshot() {
		select {
		case s.ch <- change:
		case <-s.done:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		metrics.NotificationsDropped.Add(float64(dropped))
		return fmt.Errorf("%w: %d of %d subscriptions full", ErrDropped, dropped, b.Len())
	}
	return nil
}

// Close unsubscribes every subscription.
func (b *Broker) Close() {
	for _, s := range b.snapshot() {
		s.Unsubscribe()
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) snapshot() []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Subscription, 0, len(b.subs))
	for id := uint64(1); id <= b.nextID; id++ {
		if s, ok := b.subs[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

type Subscription struct {
	id     uint64
	broker *Broker
	ch     chan SubscriptionChanged
	done   chan struct{}
	once   sync.Once
}

// C returns the delivery channel. It is never closed; select on Done as well.
func (s *Subscription) C() <-chan SubscriptionChanged { return s.ch }

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s.id)
		close(s.done)
	})
}

// Run calls h for each delivered change, one at a time, until ctx ends or the
// subscription is cancelled.
func (s *Subscription) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case change := <-s.ch:
			h(ctx, change)
		}
	}
}
