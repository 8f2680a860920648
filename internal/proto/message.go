package proto

import (
	"bytes"
	"encoding/json"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeRegisterStudent = "register-student"
	InboundTypeAskQuestion     = "ask-question"
	InboundTypeSubmitAnswer    = "submit-answer"
	InboundTypeChatMessage     = "chat-message"
	InboundTypeGetHistory      = "get-history"
	InboundTypeKickStudent     = "kick-student"
	InboundTypeClosePoll       = "close-poll"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventWelcome        = "welcome"
	EventStudentList    = "student-list"
	EventNewQuestion    = "new-question"
	EventPollResults    = "poll-results"
	EventChatMessage    = "chat-message"
	EventChatBacklog    = "chat-backlog"
	EventKicked         = "kicked"
	EventPollHistory    = "poll-history"
	EventAnswerAccepted = "answer-accepted"
)

// RegisterData carries a student's display name. Clients may send either
// a bare JSON string or {"name": "..."}.
type RegisterData struct {
	Name string `json:"name"`
}

func (d *RegisterData) UnmarshalJSON(data []byte) error {
	return unmarshalStringOr(data, &d.Name, func(b []byte) error {
		type plain RegisterData
		return json.Unmarshal(b, (*plain)(d))
	})
}

// AskQuestionData opens a poll. Duration is in milliseconds; nil means the server default.
type AskQuestionData struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	TotalStudents int      `json:"totalStudents,omitempty"`
	Duration      *int64   `json:"duration,omitempty"`
}

// SubmitAnswerData carries a student's choice. Name is informational only.
type SubmitAnswerData struct {
	Name   string `json:"name,omitempty"`
	Answer string `json:"answer"`
}

// ChatData is a chat message from the client.
type ChatData struct {
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// KickData names the student connection to remove: "id" or {"id": "..."}.
type KickData struct {
	ID string `json:"id"`
}

func (d *KickData) UnmarshalJSON(data []byte) error {
	return unmarshalStringOr(data, &d.ID, func(b []byte) error {
		type plain KickData
		return json.Unmarshal(b, (*plain)(d))
	})
}

func unmarshalStringOr(data []byte, dst *string, object func([]byte) error) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, dst)
	}
	return object(trimmed)
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// WelcomeData tells a fresh connection who it is.
type WelcomeData struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// StudentEntry is one roster line.
type StudentEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewQuestionData announces an opened poll. Duration is in milliseconds,
// Deadline in unix milliseconds.
type NewQuestionData struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int64    `json:"duration"`
	Deadline int64    `json:"deadline"`
}

// ChatEntry is a relayed chat message; TS is unix milliseconds.
type ChatEntry struct {
	From string `json:"from"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// AnswerAcceptedData acknowledges a stored answer.
type AnswerAcceptedData struct {
	Answer string `json:"answer"`
}

// TallyEntry counts the answers for one option.
type TallyEntry struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

// HistoryEntry is a closed poll as exposed over the wire.
type HistoryEntry struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Options   []string     `json:"options"`
	Responses Responses    `json:"responses"`
	Tally     []TallyEntry `json:"tally"`
	Reason    string       `json:"reason"`
	OpenedAt  int64        `json:"openedAt"`
	ClosedAt  int64        `json:"closedAt"`
}

// StatusData answers GET /api/status.
type StatusData struct {
	State       string           `json:"state"`
	Question    *NewQuestionData `json:"question,omitempty"`
	Expected    int              `json:"expected"`
	Answered    int              `json:"answered"`
	Connections int              `json:"connections"`
	Students    int              `json:"students"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
