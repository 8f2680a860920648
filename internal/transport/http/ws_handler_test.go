package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketPollRoundTrip(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	teacher := env.dial(ctx, t, "token="+url.QueryEscape(env.teacherToken(t)))
	welcome := readEvent(ctx, t, teacher, proto.EventWelcome)
	var w proto.WelcomeData
	if err := json.Unmarshal(welcome.Data, &w); err != nil || w.Role != "teacher" {
		t.Fatalf("unexpected teacher welcome: %s (%v)", welcome.Data, err)
	}

	zed := env.dial(ctx, t, "protocol=1")
	send(ctx, t, zed, proto.InboundTypeRegisterStudent, "Zed")
	readStudentList(ctx, t, teacher, 1)

	amy := env.dial(ctx, t, "")
	send(ctx, t, amy, proto.InboundTypeRegisterStudent, proto.RegisterData{Name: "Amy"})
	readStudentList(ctx, t, teacher, 2)

	send(ctx, t, teacher, proto.InboundTypeAskQuestion, map[string]any{
		"question":      "2+2?",
		"options":       []string{"3", "4"},
		"totalStudents": 2,
	})
	for _, conn := range []*websocket.Conn{teacher, zed, amy} {
		msg := readEvent(ctx, t, conn, proto.EventNewQuestion)
		var q proto.NewQuestionData
		if err := json.Unmarshal(msg.Data, &q); err != nil {
			t.Fatalf("decode question: %v", err)
		}
		if q.Question != "2+2?" || len(q.Options) != 2 || q.Duration != 60000 || q.Deadline == 0 {
			t.Fatalf("unexpected question: %+v", q)
		}
	}

	send(ctx, t, zed, proto.InboundTypeSubmitAnswer, proto.SubmitAnswerData{Name: "Zed", Answer: "4"})
	readEvent(ctx, t, zed, proto.EventAnswerAccepted)
	send(ctx, t, amy, proto.InboundTypeSubmitAnswer, proto.SubmitAnswerData{Name: "Amy", Answer: "3"})

	results := readEvent(ctx, t, teacher, proto.EventPollResults)
	if string(results.Data) != `{"Zed":"4","Amy":"3"}` {
		t.Fatalf("results = %s, want arrival-ordered object", results.Data)
	}

	send(ctx, t, teacher, proto.InboundTypeGetHistory, nil)
	hist := readEvent(ctx, t, teacher, proto.EventPollHistory)
	var entries []proto.HistoryEntry
	if err := json.Unmarshal(hist.Data, &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "all_answered" || len(entries[0].Responses) != 2 {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestWebSocketInvalidTokenRejected(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	_, resp, err := websocket.Dial(ctx, env.wsURL("token=garbage"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestProtocolVersionMismatch(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	conn := env.dial(ctx, t, "protocol=2")
	e := readError(ctx, t, conn)
	if e == nil || e.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", e)
	}
}

func TestWebSocketStudentCannotAsk(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	student := env.dial(ctx, t, "")
	send(ctx, t, student, proto.InboundTypeAskQuestion, proto.AskQuestionData{Question: "Q?", Options: []string{"a", "b"}})
	if e := readError(ctx, t, student); e == nil || e.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %+v", e)
	}
}

func TestWebSocketBadPayloads(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)
	conn := env.dial(ctx, t, "")

	tests := []struct {
		name     string
		typ      string
		data     any
		wantCode string
	}{
		{"unknown type", "dance", nil, "invalid_message"},
		{"missing register payload", proto.InboundTypeRegisterStudent, nil, "bad_request"},
		{"blank name", proto.InboundTypeRegisterStudent, "   ", "bad_request"},
		{"wrong answer shape", proto.InboundTypeSubmitAnswer, []int{1}, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(ctx, t, conn, tt.typ, tt.data)
			if e := readError(ctx, t, conn); e == nil || e.Code != tt.wantCode {
				t.Fatalf("expected %s, got %+v", tt.wantCode, e)
			}
		})
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if e := readError(ctx, t, conn); e == nil || e.Code != "bad_request" {
		t.Fatalf("expected bad_request for invalid json, got %+v", e)
	}
}

func TestWebSocketKickClosesConnection(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	teacher := env.dial(ctx, t, "token="+url.QueryEscape(env.teacherToken(t)))
	student := env.dial(ctx, t, "")

	welcome := readEvent(ctx, t, student, proto.EventWelcome)
	var w proto.WelcomeData
	if err := json.Unmarshal(welcome.Data, &w); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	send(ctx, t, student, proto.InboundTypeRegisterStudent, "Bart")
	readStudentList(ctx, t, teacher, 1)

	send(ctx, t, teacher, proto.InboundTypeKickStudent, w.ID)
	readEvent(ctx, t, student, proto.EventKicked)

	_, _, err := student.Read(ctx)
	var ce websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != websocket.StatusPolicyViolation || ce.Reason != "kicked" {
		t.Fatalf("unexpected close: %d %q", ce.Code, ce.Reason)
	}
	readStudentList(ctx, t, teacher, 0)
}

func TestWebSocketChatBroadcast(t *testing.T) {
	env := startTestServer(t)
	ctx := testContext(t)

	a := env.dial(ctx, t, "")
	b := env.dial(ctx, t, "")
	readEvent(ctx, t, b, proto.EventWelcome)

	send(ctx, t, a, proto.InboundTypeChatMessage, proto.ChatData{From: "alice", Text: "hi there"})
	msg := readEvent(ctx, t, b, proto.EventChatMessage)
	var chat proto.ChatEntry
	if err := json.Unmarshal(msg.Data, &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if chat.From != "alice" || chat.Text != "hi there" || chat.TS == 0 {
		t.Fatalf("unexpected chat payload: %+v", chat)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) { cfg.RateLimitPerMin = 2 })
	ctx := testContext(t)
	conn := env.dial(ctx, t, "")

	for i := 0; i < 3; i++ {
		send(ctx, t, conn, proto.InboundTypeChatMessage, proto.ChatData{Text: "spam"})
	}
	if e := readError(ctx, t, conn); e == nil || e.Code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %+v", e)
	}
}

func TestDroppedReasonDistinguishesKickFromShutdown(t *testing.T) {
	env := startTestServer(t)

	teacher := core.NewClient("t1", "", core.RoleTeacher)
	env.hub.RegisterClient(teacher)
	student := core.NewClient("s1", "", core.RoleStudent)
	env.hub.RegisterClient(student)
	student.Commands <- &core.Command{Kind: core.CommandRegisterStudent, Name: "Bart"}
	waitCoreEvent(t, teacher, func(ev *core.Event) bool {
		return ev.Kind == core.EventStudentList && len(ev.Students) == 1
	})

	// the student never reads, so the kicked event is lost to a full buffer
	for i := 0; i < cap(student.Events)+8; i++ {
		teacher.Commands <- &core.Command{Kind: core.CommandSendChat, Chat: core.ChatMessage{Text: "noise"}}
		waitCoreEvent(t, teacher, func(ev *core.Event) bool { return ev.Kind == core.EventChatMessage })
	}
	teacher.Commands <- &core.Command{Kind: core.CommandKickStudent, TargetID: "s1"}

	select {
	case <-student.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("student was not dropped")
	}
	if err := droppedReason(student); !errors.Is(err, errKicked) {
		t.Fatalf("dropped reason = %v, want kicked", err)
	}
	if code, reason := closeStatus(droppedReason(student)); code != websocket.StatusPolicyViolation || reason != "kicked" {
		t.Fatalf("close status = %d %q", code, reason)
	}
	if err := droppedReason(teacher); !errors.Is(err, errHubClosed) {
		t.Fatalf("teacher dropped reason = %v, want hub closed", err)
	}
}

func waitCoreEvent(t *testing.T, c *core.Client, match func(*core.Event) bool) {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events:
			if ev != nil && match(ev) {
				return
			}
		case <-timeout:
			t.Fatalf("expected event not received by %s", c.ID)
		}
	}
}
