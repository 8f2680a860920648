package core

import "github.com/vovakirdan/livepoll-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventWelcome tells a fresh connection its id and role.
	EventWelcome EventKind = iota
	// EventStudentList carries the roster after any change.
	EventStudentList
	// EventNewQuestion announces an opened poll and clears displayed results.
	EventNewQuestion
	// EventPollResults carries the aggregated answers of a closed poll.
	EventPollResults
	// EventChatMessage relays a chat message.
	EventChatMessage
	// EventChatBacklog replays recent chat to a new connection.
	EventChatBacklog
	// EventKicked is sent to a student right before the hub drops it.
	EventKicked
	// EventHistory answers get-history.
	EventHistory
	// EventAnswerAccepted acknowledges a stored answer to its sender.
	EventAnswerAccepted
	// EventError notifies the originator about a rejected intent.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	ClientID string // EventWelcome
	Role     Role   // EventWelcome
	Students []Student
	Question *Question
	Results  Results
	Chat     ChatMessage
	Backlog  []ChatMessage
	History  []*store.PollRecord
	Answer   string
	Error    *CoreError
}
