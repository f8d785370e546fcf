package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev := <-s.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.C:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishByTopic(t *testing.T) {
	b := NewBroker()
	requests := b.Subscribe(TopicRequests)
	defer requests.Cancel()
	profiles := b.Subscribe(TopicProfiles)
	defer profiles.Cancel()

	b.Publish(context.Background(), Event{Topic: TopicRequests, Key: "r1", Op: OpUpsert})

	ev := receive(t, requests)
	if ev.Key != "r1" || ev.At.IsZero() {
		t.Errorf("event = %+v, want key r1 with timestamp", ev)
	}
	assertNoEvent(t, profiles)
}

func TestDeliveryCoalesces(t *testing.T) {
	b := NewBroker()
	s := b.Subscribe(TopicRequests)
	defer s.Cancel()

	for i := 0; i < 10; i++ {
		b.Publish(context.Background(), Event{Topic: TopicRequests, Key: "r1"})
	}

	receive(t, s)
	assertNoEvent(t, s)
}

func TestCancelReleases(t *testing.T) {
	b := NewBroker()
	s := b.Subscribe(TopicProfiles)
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}

	s.Cancel()
	s.Cancel()
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after Cancel, want 0", b.Len())
	}

	b.Publish(context.Background(), Event{Topic: TopicProfiles, Key: "u1"})
	assertNoEvent(t, s)
}

type stubRelay struct {
	forwarded []Event
	err       error
}

func (r *stubRelay) Forward(_ context.Context, ev Event) error {
	r.forwarded = append(r.forwarded, ev)
	return r.err
}

func TestRelayForwardingFailureKeepsLocalDelivery(t *testing.T) {
	b := NewBroker()
	relay := &stubRelay{err: errors.New("redis down")}
	var reported error
	b.SetRelay(relay, func(err error) { reported = err })

	s := b.Subscribe(TopicRequests)
	defer s.Cancel()

	b.Publish(context.Background(), Event{Topic: TopicRequests, Key: "r1"})

	receive(t, s)
	if len(relay.forwarded) != 1 {
		t.Errorf("forwarded %d events, want 1", len(relay.forwarded))
	}
	if reported == nil {
		t.Error("relay error not reported")
	}
}

func TestRedisRelayIgnoresOwnEvents(t *testing.T) {
	b := NewBroker()
	r := NewRedisRelay(nil, "test", b, zap.NewNop())
	s := b.Subscribe(TopicRequests)
	defer s.Cancel()

	r.handle(`{"topic":"requests","key":"r1","op":"upsert","origin":"` + r.origin + `"}`)
	assertNoEvent(t, s)

	r.handle(`{"topic":"requests","key":"r2","op":"delete","origin":"other-instance"}`)
	ev := receive(t, s)
	if ev.Key != "r2" || ev.Op != OpDelete {
		t.Errorf("event = %+v, want remote r2 delete", ev)
	}

	r.handle(`not json`)
	assertNoEvent(t, s)
}
