package core

import "time"

// Role is the capability a connection was admitted with.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Client is a connected party as seen by the core layer.
type Client struct {
	ID          string
	Name        string
	Role        Role
	ConnectedAt time.Time
	Commands    chan *Command
	Events      chan *Event

	// done is closed by the hub once the client has been removed.
	done chan struct{}
	// kicked is set by the hub before done and Events are closed.
	kicked bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string, role Role) *Client {
	if role == "" {
		role = RoleStudent
	}
	if name == "" && role == RoleTeacher {
		name = "Teacher"
	}
	return &Client{
		ID:          id,
		Name:        name,
		Role:        role,
		ConnectedAt: time.Now(),
		Commands:    make(chan *Command, 16),
		Events:      make(chan *Event, 32),
		done:        make(chan struct{}),
	}
}

// Done is closed when the hub has dropped the client (disconnect, kick or shutdown).
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Kicked reports whether the hub dropped the client because a teacher kicked it.
// Only meaningful once Done or Events has been closed.
func (c *Client) Kicked() bool {
	return c.kicked
}

// send delivers an event without blocking the hub; slow consumers lose events.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
