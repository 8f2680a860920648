package http

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
)

var errEmptyPayload = errors.New("data is required")

// maxDurationMillis is the largest millisecond count a time.Duration can hold.
const maxDurationMillis = math.MaxInt64 / int64(time.Millisecond)

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeRegisterStudent:
		var reg proto.RegisterData
		if err := decodeData(inbound.Data, &reg); err != nil {
			return nil, badRequest("invalid register-student payload")
		}
		return &core.Command{Kind: core.CommandRegisterStudent, Name: reg.Name}, nil
	case proto.InboundTypeAskQuestion:
		var ask proto.AskQuestionData
		if err := decodeData(inbound.Data, &ask); err != nil {
			return nil, badRequest("invalid ask-question payload")
		}
		spec := core.QuestionSpec{
			Text:          ask.Question,
			Options:       ask.Options,
			TotalStudents: ask.TotalStudents,
		}
		if ask.Duration != nil {
			if *ask.Duration > maxDurationMillis || *ask.Duration < -maxDurationMillis {
				return nil, badRequest("duration is out of range")
			}
			d := time.Duration(*ask.Duration) * time.Millisecond
			spec.Duration = &d
		}
		return &core.Command{Kind: core.CommandAskQuestion, Question: spec}, nil
	case proto.InboundTypeSubmitAnswer:
		var ans proto.SubmitAnswerData
		if err := decodeData(inbound.Data, &ans); err != nil {
			return nil, badRequest("invalid submit-answer payload")
		}
		return &core.Command{Kind: core.CommandSubmitAnswer, Answer: ans.Answer}, nil
	case proto.InboundTypeChatMessage:
		var msg proto.ChatData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return nil, badRequest("invalid chat-message payload")
		}
		return &core.Command{
			Kind: core.CommandSendChat,
			Chat: core.ChatMessage{From: msg.From, Text: msg.Text},
		}, nil
	case proto.InboundTypeGetHistory:
		return &core.Command{Kind: core.CommandGetHistory}, nil
	case proto.InboundTypeKickStudent:
		var kick proto.KickData
		if err := decodeData(inbound.Data, &kick); err != nil || kick.ID == "" {
			return nil, badRequest("student id is required")
		}
		return &core.Command{Kind: core.CommandKickStudent, TargetID: kick.ID}, nil
	case proto.InboundTypeClosePoll:
		return &core.Command{Kind: core.CommandClosePoll}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventWelcome:
		return eventOutbound(proto.EventWelcome, proto.WelcomeData{ID: event.ClientID, Role: string(event.Role)})
	case core.EventStudentList:
		return eventOutbound(proto.EventStudentList, studentEntries(event.Students))
	case core.EventNewQuestion:
		if event.Question == nil {
			break
		}
		return eventOutbound(proto.EventNewQuestion, questionData(event.Question))
	case core.EventPollResults:
		return eventOutbound(proto.EventPollResults, responses(event.Results))
	case core.EventChatMessage:
		return eventOutbound(proto.EventChatMessage, chatEntry(event.Chat))
	case core.EventChatBacklog:
		entries := make([]proto.ChatEntry, 0, len(event.Backlog))
		for _, msg := range event.Backlog {
			entries = append(entries, chatEntry(msg))
		}
		return eventOutbound(proto.EventChatBacklog, entries)
	case core.EventKicked:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventKicked}
	case core.EventHistory:
		return eventOutbound(proto.EventPollHistory, proto.HistoryEntries(event.History))
	case core.EventAnswerAccepted:
		return eventOutbound(proto.EventAnswerAccepted, proto.AnswerAcceptedData{Answer: event.Answer})
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}
	return proto.Outbound{Type: proto.OutboundTypeEvent}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func studentEntries(students []core.Student) []proto.StudentEntry {
	out := make([]proto.StudentEntry, 0, len(students))
	for _, s := range students {
		out = append(out, proto.StudentEntry{ID: s.ID, Name: s.Name})
	}
	return out
}

func questionData(q *core.Question) *proto.NewQuestionData {
	return &proto.NewQuestionData{
		Question: q.Text,
		Options:  q.Options,
		Duration: q.Duration.Milliseconds(),
		Deadline: q.Deadline.UnixMilli(),
	}
}

func responses(results core.Results) proto.Responses {
	out := make(proto.Responses, 0, len(results))
	for _, r := range results {
		out = append(out, proto.ResponseEntry{Name: r.Name, Answer: r.Answer})
	}
	return out
}

func chatEntry(msg core.ChatMessage) proto.ChatEntry {
	return proto.ChatEntry{From: msg.From, Text: msg.Text, TS: msg.SentAt.UnixMilli()}
}
