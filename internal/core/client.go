package core

import "sync"

// Client is one live connection as seen by the core layer. The transport
// drains Events; the core never blocks on a slow client.
type Client struct {
	ID     string
	UserID UserID
	Events chan *Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a connection handle for the given user.
func NewClient(id string, user UserID) *Client {
	return &Client{
		ID:     id,
		UserID: user,
		Events: make(chan *Event, 32),
		done:   make(chan struct{}),
	}
}

// Send queues an event without blocking. It returns false when the client is
// closed or its buffer is full (the event is dropped).
func (c *Client) Send(event *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- event:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close marks the client as gone. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
