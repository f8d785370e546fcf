package v1

import (
	"context"
	"sync"

	"github.com/duynhne/masjid-connect-service/internal/core/feed"
)

// Feed is the change feed services publish to and watches subscribe to.
// *feed.Broker implements it.
type Feed interface {
	feed.Publisher
	Subscribe(topic feed.Topic) *feed.Subscription
}

// Snapshot is one value pushed by a Watch. Err is set when the reload failed;
// the watch keeps running and tries again on the next change.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Watch pushes a fresh snapshot after every relevant change event.
// C is closed once the watch has stopped.
type Watch[T any] struct {
	C <-chan Snapshot[T]

	sub    *feed.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewWatch starts a watch over sub. The subscription is taken before the initial load so
// no change between the two is missed. match filters events; nil accepts all of them.
// The watch owns sub and cancels it on Close.
func NewWatch[T any](ctx context.Context, sub *feed.Subscription, load func(context.Context) (T, error), match func(feed.Event) bool) *Watch[T] {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Snapshot[T])
	w := &Watch[T]{
		C:      ch,
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	activeWatches.Inc()
	go func() {
		defer close(w.done)
		defer close(ch)
		defer activeWatches.Dec()

		send := func() bool {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return false
			}
			select {
			case ch <- Snapshot[T]{Value: v, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub.C:
				if match != nil && !match(ev) {
					continue
				}
				if !send() {
					return
				}
			}
		}
	}()

	return w
}

// Close stops the watch, waits for it to exit and releases its subscription.
// Safe to call more than once.
func (w *Watch[T]) Close() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
		w.sub.Cancel()
	})
}

// Done is closed when the watch has stopped.
func (w *Watch[T]) Done() <-chan struct{} {
	return w.done
}
