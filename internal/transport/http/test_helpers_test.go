package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
	"github.com/vovakirdan/livepoll-server/internal/store/memory"
)

const testPasscode = "let-me-teach"

type testEnv struct {
	ts      *httptest.Server
	hub     *core.Hub
	auth    *auth.Service
	history *memory.Store
}

// startTestServer runs a hub and the HTTP server with a configured teacher passcode.
func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = "testsecret"
	hash, err := auth.HashPasscode(testPasscode)
	if err != nil {
		t.Fatalf("hash passcode: %v", err)
	}
	cfg.TeacherPasscodeHash = hash
	for _, fn := range mutate {
		fn(&cfg)
	}

	logger := zerolog.Nop()
	history := memory.New(0)
	hub := core.NewHub(history, core.WithLogger(&logger))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	authService := auth.NewService(cfg.TeacherPasscodeHash, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	server := NewServer(hub, authService, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, history: history}
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) teacherToken(t *testing.T) string {
	t.Helper()

	token, err := e.auth.Login(testPasscode)
	if err != nil {
		t.Fatalf("teacher login: %v", err)
	}
	return token
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type wireMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readEvent reads until an event with the given name arrives, skipping others.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) wireMessage {
	t.Helper()

	for {
		var msg wireMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read %s: %v", event, err)
		}
		if msg.Type == proto.OutboundTypeEvent && msg.Event == event {
			return msg
		}
	}
}

// readError reads until an error envelope arrives.
func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var msg wireMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read error envelope: %v", err)
		}
		if msg.Type == proto.OutboundTypeError {
			return msg.Error
		}
	}
}

// readStudentList waits for a roster broadcast with n students.
func readStudentList(ctx context.Context, t *testing.T, conn *websocket.Conn, n int) []proto.StudentEntry {
	t.Helper()

	for {
		msg := readEvent(ctx, t, conn, proto.EventStudentList)
		var list []proto.StudentEntry
		if err := json.Unmarshal(msg.Data, &list); err != nil {
			t.Fatalf("decode student list: %v", err)
		}
		if len(list) == n {
			return list
		}
	}
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = b
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
