package core

import "time"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegisterStudent adds the connection to the roster under a display name.
	CommandRegisterStudent CommandKind = iota
	// CommandAskQuestion opens a poll.
	CommandAskQuestion
	// CommandSubmitAnswer records the sender's answer for the open poll.
	CommandSubmitAnswer
	// CommandSendChat relays a chat message to every connection.
	CommandSendChat
	// CommandGetHistory requests the closed-poll history.
	CommandGetHistory
	// CommandKickStudent forcibly disconnects a student.
	CommandKickStudent
	// CommandClosePoll ends the open poll before its deadline.
	CommandClosePoll
)

var commandNames = map[CommandKind]string{
	CommandRegisterStudent: "register-student",
	CommandAskQuestion:     "ask-question",
	CommandSubmitAnswer:    "submit-answer",
	CommandSendChat:        "chat-message",
	CommandGetHistory:      "get-history",
	CommandKickStudent:     "kick-student",
	CommandClosePoll:       "close-poll",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// QuestionSpec is the teacher's request to open a poll.
type QuestionSpec struct {
	Text    string
	Options []string
	// TotalStudents is advisory; respondents come from the live roster.
	TotalStudents int
	// Duration nil means the hub default.
	Duration *time.Duration
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Name     string // register-student
	Question QuestionSpec
	Answer   string // submit-answer
	Chat     ChatMessage
	TargetID string // kick-student
}
