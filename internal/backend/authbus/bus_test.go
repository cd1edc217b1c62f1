package authbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/authbus"
)

func recv(t *testing.T, ch <-chan authbus.Message) authbus.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for auth message")
	}
	return authbus.Message{}
}

func TestMemory_RoutesBySessionAndUser(t *testing.T) {
	bus := authbus.NewMemory(nil)
	defer bus.Close()
	ctx := context.Background()

	s1 := make(chan authbus.Message, 4)
	s2 := make(chan authbus.Message, 4)
	sub1 := bus.Subscribe(authbus.Key{SessionID: "sess-1", UserID: "u1"}, func(_ context.Context, m authbus.Message) { s1 <- m })
	defer sub1.Unsubscribe()
	sub2 := bus.Subscribe(authbus.Key{SessionID: "sess-2", UserID: "u1"}, func(_ context.Context, m authbus.Message) { s2 <- m })
	defer sub2.Unsubscribe()

	_ = bus.Publish(ctx, authbus.Message{Event: backend.EventSignedOut, SessionID: "sess-1", UserID: "u1"})
	if m := recv(t, s1); m.Event != backend.EventSignedOut {
		t.Fatalf("sess-1 got %q", m.Event)
	}

	// user-wide push reaches both sessions
	_ = bus.Publish(ctx, authbus.Message{Event: backend.EventUserUpdated, UserID: "u1"})
	if m := recv(t, s1); m.Event != backend.EventUserUpdated {
		t.Fatalf("sess-1 got %q", m.Event)
	}
	if m := recv(t, s2); m.Event != backend.EventUserUpdated {
		t.Fatalf("sess-2 got %q", m.Event)
	}
	select {
	case m := <-s2:
		t.Fatalf("sess-2 should not see sess-1 sign-out, got %+v", m)
	default:
	}
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	bus := authbus.NewMemory(nil)
	defer bus.Close()

	got := make(chan authbus.Message, 1)
	sub := bus.Subscribe(authbus.Key{SessionID: "s"}, func(_ context.Context, m authbus.Message) { got <- m })
	sub.Unsubscribe()
	sub.Unsubscribe()

	_ = bus.Publish(context.Background(), authbus.Message{Event: backend.EventSignedIn, SessionID: "s"})
	select {
	case m := <-got:
		t.Fatalf("unexpected delivery after unsubscribe: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_PreservesOrder(t *testing.T) {
	bus := authbus.NewMemory(nil)
	defer bus.Close()

	got := make(chan authbus.Message, 3)
	sub := bus.Subscribe(authbus.Key{SessionID: "s"}, func(_ context.Context, m authbus.Message) { got <- m })
	defer sub.Unsubscribe()

	ctx := context.Background()
	for _, ev := range []backend.AuthEvent{backend.EventSignedIn, backend.EventTokenRefreshed, backend.EventSignedOut} {
		_ = bus.Publish(ctx, authbus.Message{Event: ev, SessionID: "s"})
	}
	want := []backend.AuthEvent{backend.EventSignedIn, backend.EventTokenRefreshed, backend.EventSignedOut}
	for i, w := range want {
		if m := recv(t, got); m.Event != w {
			t.Fatalf("event %d = %q, want %q", i, m.Event, w)
		}
	}
}
