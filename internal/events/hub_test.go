package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishAssignsSequenceAndEvictsOldest(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: Progress, Processed: i})
	}
	events, last := hub.Tail(0)
	if last != 5 || len(events) != 3 {
		t.Fatalf("expected 3 buffered events and last=5, got %d last=%d", len(events), last)
	}
	if events[0].Sequence != 3 || events[2].Sequence != 5 || events[2].Processed != 4 {
		t.Fatalf("unexpected buffer %+v", events)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}
}

func TestFetchSinceAndLimit(t *testing.T) {
	hub := NewHub(10)
	for i := 0; i < 4; i++ {
		hub.Publish(Event{Type: Progress})
	}
	events, last, err := hub.Fetch(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 2 || last != 4 {
		t.Fatalf("unexpected fetch %+v last=%d", events, last)
	}
	events, _, _ = hub.Fetch(context.Background(), 4, 0, false)
	if len(events) != 0 {
		t.Fatalf("expected no events after latest, got %+v", events)
	}
}

func TestFetchWaitsForPublish(t *testing.T) {
	hub := NewHub(10)
	done := make(chan []Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Publish(Event{Type: RunStarted, RunID: "r1"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Type != RunStarted {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestFetchWaitHonoursContext(t *testing.T) {
	hub := NewHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestTerminalTypes(t *testing.T) {
	for _, typ := range []Type{RunCompleted, RunStopped, RunError} {
		if !typ.Terminal() {
			t.Fatalf("%s should be terminal", typ)
		}
	}
	if RunStarted.Terminal() || Progress.Terminal() {
		t.Fatal("start and progress are not terminal")
	}
	var nilHub *Hub
	nilHub.Publish(Event{})
	if _, ok := nilHub.Latest(); ok {
		t.Fatal("nil hub has no events")
	}
}
