package core

import "sync/atomic"

// Client is one connection as seen by the core layer. The transport drains Events.
type Client struct {
	ID     string
	Events chan *Event

	dropped atomic.Int64
}

// NewClient constructs a client with a buffered event queue.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
	}
}

// TrySend queues an event without blocking. Events for slow consumers are dropped.
func (c *Client) TrySend(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}
