package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/livepoll-server/internal/proto"
)

// ws_smoke runs one poll end to end against a live server: teacher login,
// one student, one question, one answer, results.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	passcode := flag.String("passcode", "", "teacher passcode")
	student := flag.String("student", "tester", "student display name")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := login(ctx, *base, *passcode)
	if err != nil {
		return err
	}

	wsBase := strings.Replace(*base, "http", "ws", 1) + "/ws"
	teacher, _, err := websocket.Dial(ctx, wsBase+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return fmt.Errorf("dial teacher: %w", err)
	}
	defer teacher.Close(websocket.StatusNormalClosure, "bye")

	pupil, _, err := websocket.Dial(ctx, wsBase+"?protocol=1", nil)
	if err != nil {
		return fmt.Errorf("dial student: %w", err)
	}
	defer pupil.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, pupil, proto.InboundTypeRegisterStudent, proto.RegisterData{Name: *student}); err != nil {
		return err
	}
	if _, err := waitFor(ctx, teacher, proto.EventStudentList, func(raw json.RawMessage) bool {
		var list []proto.StudentEntry
		return json.Unmarshal(raw, &list) == nil && len(list) > 0
	}); err != nil {
		return err
	}

	ask := proto.AskQuestionData{Question: "Is the server up?", Options: []string{"yes", "no"}}
	if err := send(ctx, teacher, proto.InboundTypeAskQuestion, ask); err != nil {
		return err
	}
	if _, err := waitFor(ctx, pupil, proto.EventNewQuestion, nil); err != nil {
		return err
	}
	if err := send(ctx, pupil, proto.InboundTypeSubmitAnswer, proto.SubmitAnswerData{Name: *student, Answer: "yes"}); err != nil {
		return err
	}

	results, err := waitFor(ctx, teacher, proto.EventPollResults, nil)
	if err != nil {
		return err
	}
	fmt.Printf("poll-results: %s\n", results)
	return nil
}

func login(ctx context.Context, base, passcode string) (string, error) {
	body, err := json.Marshal(map[string]string{"passcode": passcode})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/teacher/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login: %w", err)
	}
	return out.Token, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func waitFor(ctx context.Context, conn *websocket.Conn, event string, match func(json.RawMessage) bool) (json.RawMessage, error) {
	for {
		var msg struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return nil, fmt.Errorf("read %s: %w", event, err)
		}
		if msg.Type == proto.OutboundTypeError && msg.Error != nil {
			return nil, fmt.Errorf("server error %s: %s", msg.Error.Code, msg.Error.Msg)
		}
		fmt.Printf("received %s\n", msg.Event)
		if msg.Event == event && (match == nil || match(msg.Data)) {
			return msg.Data, nil
		}
	}
}
