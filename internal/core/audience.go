package core

// audience is the set of live connections that receive broadcasts.
type audience struct {
	clients map[string]*Client
}

func newAudience() *audience {
	return &audience{clients: make(map[string]*Client)}
}

// add inserts a client. Returns false if the id is already connected.
func (a *audience) add(c *Client) bool {
	if _, exists := a.clients[c.ID]; exists {
		return false
	}
	a.clients[c.ID] = c
	return true
}

// remove deletes the exact client instance. Returns true if removed.
func (a *audience) remove(c *Client) bool {
	if cur, exists := a.clients[c.ID]; !exists || cur != c {
		return false
	}
	delete(a.clients, c.ID)
	return true
}

// get returns the live client with the given id.
func (a *audience) get(id string) (*Client, bool) {
	c, ok := a.clients[id]
	return c, ok
}

// has reports whether c is still connected.
func (a *audience) has(c *Client) bool {
	cur, ok := a.clients[c.ID]
	return ok && cur == c
}

// broadcast sends an event to every client.
func (a *audience) broadcast(ev *Event) {
	for _, c := range a.clients {
		c.send(ev)
	}
}

func (a *audience) len() int {
	return len(a.clients)
}
