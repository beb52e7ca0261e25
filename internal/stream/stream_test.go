package stream

import (
	"context"
	"testing"
	"time"

	"reftracker.org/internal/stakeholder"
)

func receive(t *testing.T, ch <-chan stakeholder.Event) stakeholder.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return stakeholder.Event{}
}

func expectNone(t *testing.T, ch <-chan stakeholder.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestPublishFiltersByOrg(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orgA := s.Subscribe(ctx, "org-a")
	orgB := s.Subscribe(ctx, "org-b")
	all := s.Subscribe(ctx, "")

	s.Publish(stakeholder.Event{StakeholderID: "s1", OrgID: "org-a", To: stakeholder.StatusEngaged})

	if got := receive(t, orgA); got.StakeholderID != "s1" {
		t.Fatalf("unexpected event %+v", got)
	}
	receive(t, all)
	expectNone(t, orgB)

	s.Publish(stakeholder.Event{StakeholderID: "s2", To: stakeholder.StatusCreated})
	receive(t, orgA)
	receive(t, orgB)
	receive(t, all)
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "")
	if s.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed")
	}
	if s.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
}

func TestPublishDropsForSlowSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx, "")

	for i := 0; i < subscriberBuffer+3; i++ {
		s.Publish(stakeholder.Event{StakeholderID: "s"})
	}
	if s.Dropped() != 3 {
		t.Fatalf("expected 3 drops, got %d", s.Dropped())
	}
}
