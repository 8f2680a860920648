package core

import "time"

// ChatMessage is a relayed free-text message. It is never mutated after creation.
type ChatMessage struct {
	From   string
	Text   string
	SentAt time.Time
}

// ChatRelay keeps the most recent messages so late joiners can catch up.
// Fan-out itself is done by the hub over the live connections.
type ChatRelay struct {
	backlog []ChatMessage
	limit   int
}

// NewChatRelay creates a relay that retains up to limit messages (0 disables the backlog).
func NewChatRelay(limit int) *ChatRelay {
	return &ChatRelay{limit: limit}
}

// Post records msg in the backlog.
func (r *ChatRelay) Post(msg ChatMessage) {
	if r.limit <= 0 {
		return
	}
	r.backlog = append(r.backlog, msg)
	if len(r.backlog) > r.limit {
		r.backlog = r.backlog[len(r.backlog)-r.limit:]
	}
}

// Backlog returns a copy of the retained messages, oldest first.
func (r *ChatRelay) Backlog() []ChatMessage {
	out := make([]ChatMessage, len(r.backlog))
	copy(out, r.backlog)
	return out
}
