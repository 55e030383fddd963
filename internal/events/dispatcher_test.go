package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventCaseCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventCaseCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})

	if err := d.Publish(context.Background(), NewEvent(EventCaseCreated, "c1", "owner", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both handlers, got %v", calls)
	}
}

func TestSubscribeAllCoversEveryType(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	seen := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type]++
		return nil
	})
	for _, typ := range AllEventTypes {
		_ = d.Publish(context.Background(), NewEvent(typ, "c1", "x", nil))
	}
	if len(seen) != len(AllEventTypes) {
		t.Fatalf("handled %d types, want %d", len(seen), len(AllEventTypes))
	}
}

func TestNewEventStampsIdentity(t *testing.T) {
	a := NewEvent(EventCaseStatusChanged, "c1", "admin@x", CaseStatusChangedPayload{})
	b := NewEvent(EventCaseStatusChanged, "c1", "admin@x", CaseStatusChangedPayload{})
	if a.ID == "" || a.ID == b.ID {
		t.Fatal("event ids must be unique")
	}
	if a.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}
