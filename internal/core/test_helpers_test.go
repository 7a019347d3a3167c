package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of the given kind is already queued.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func newTestRouter(t *testing.T, opts RouterOptions) *Router {
	t.Helper()
	r := NewRouter(NewRoomRegistry(RoomDefaults{}), NewParticipantRegistry(), nil, opts)
	t.Cleanup(r.Close)
	return r
}

func connect(t *testing.T, r *Router, id string) *Client {
	t.Helper()
	c := NewClient(id, 64)
	if _, err := r.Connect(c); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	mustEvent(t, c.Events, EventHello)
	return c
}

func join(t *testing.T, r *Router, c *Client, room string) *Event {
	t.Helper()
	if err := r.Handle(c, &Command{Kind: CommandJoinRoom, Room: room}); err != nil {
		t.Fatalf("join %s: %v", room, err)
	}
	return mustEvent(t, c.Events, EventRoomState)
}

func boolPtr(b bool) *bool { return &b }
