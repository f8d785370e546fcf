// Package feed fans change notifications out to live subscribers.
//
// Consumers treat an Event as "something changed, re-read your snapshot", so delivery is
// coalescing: a subscriber with an undelivered event pending does not queue another one.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Topic groups events by collection.
type Topic string

const (
	TopicProfiles Topic = "profiles"
	TopicRequests Topic = "requests"
)

// Op is the kind of change.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Event describes one change to a record.
type Event struct {
	Topic Topic     `json:"topic"`
	Key   string    `json:"key"`
	Op    Op        `json:"op"`
	At    time.Time `json:"at"`
	// Origin is the instance that produced the event; set by the Redis relay.
	Origin string `json:"origin,omitempty"`
}

// Publisher is what services need to announce changes.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Relay forwards locally published events to other instances.
type Relay interface {
	Forward(ctx context.Context, ev Event) error
}

var activeSubscriptions = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "live_subscriptions",
		Help: "Number of open live-feed subscriptions",
	},
	[]string{"topic"},
)

// Broker is an in-process pub/sub hub.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	relay  Relay
	onErr  func(error)
}

// NewBroker creates a broker with no relay.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*Subscription)}
}

// SetRelay installs a relay that receives every locally published event.
// onErr is called when forwarding fails; local delivery is unaffected.
func (b *Broker) SetRelay(r Relay, onErr func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
	b.onErr = onErr
}

// Publish delivers ev to local subscribers and forwards it through the relay, if any.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.Deliver(ev)

	b.mu.RLock()
	relay, onErr := b.relay, b.onErr
	b.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, ev); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Deliver hands ev to local subscribers of its topic without forwarding it.
func (b *Broker) Deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.topic != ev.Topic {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// a notification is already pending
		}
	}
}

// Subscribe opens a subscription for topic. The caller must Cancel it.
func (b *Broker) Subscribe(topic Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		topic:  topic,
		ch:     make(chan Event, 1),
		broker: b,
	}
	s.C = s.ch
	b.subs[s.id] = s
	activeSubscriptions.WithLabelValues(string(topic)).Inc()
	return s
}

// Len returns the number of open subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	activeSubscriptions.WithLabelValues(string(s.topic)).Dec()
}

// Subscription is a handle on one topic. C never closes; stop reading after Cancel.
type Subscription struct {
	C <-chan Event

	id     uint64
	topic  Topic
	ch     chan Event
	broker *Broker
	once   sync.Once
}

// Cancel releases the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.broker.remove(s) })
}
