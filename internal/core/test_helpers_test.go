package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/livepoll-server/internal/store"
	"github.com/vovakirdan/livepoll-server/internal/store/memory"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func mustError(t *testing.T, ch <-chan *Event, code string) {
	t.Helper()

	ev := mustEvent(t, ch, EventError)
	if ev.Error == nil || ev.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, ev.Error)
	}
}

// waitRoster waits for a student-list event with n entries.
func waitRoster(t *testing.T, ch <-chan *Event, n int) []Student {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventStudentList && len(ev.Students) == n {
				return ev.Students
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected student list with %d entries", n)
	return nil
}

// manualTimers replaces time.AfterFunc so tests decide when deadlines fire.
type manualTimers struct {
	mu        sync.Mutex
	durations []time.Duration
	fires     []func()
	stopped   []bool
}

func (m *manualTimers) schedule(d time.Duration, fire func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.fires)
	m.durations = append(m.durations, d)
	m.fires = append(m.fires, fire)
	m.stopped = append(m.stopped, false)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		was := m.stopped[i]
		m.stopped[i] = true
		return !was
	}
}

// fire delivers timer i even if it was stopped, like a timer racing its Stop call.
func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	fn := m.fires[i]
	m.mu.Unlock()
	fn()
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fires)
}

func (m *manualTimers) duration(i int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durations[i]
}

func (m *manualTimers) isStopped(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[i]
}

type testHub struct {
	*Hub
	history *memory.Store
	timers  *manualTimers
	stop    func()
}

func startHub(t *testing.T, opts ...Option) *testHub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	history := memory.New(0)
	timers := &manualTimers{}
	hub := NewHub(history, append([]Option{WithScheduler(timers.schedule)}, opts...)...)

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	stop := func() {
		cancel()
		<-stopped
	}
	t.Cleanup(stop)

	return &testHub{Hub: hub, history: history, timers: timers, stop: stop}
}

func (th *testHub) teacher(t *testing.T) *Client {
	t.Helper()

	c := NewClient("teacher", "", RoleTeacher)
	th.RegisterClient(c)
	mustEvent(t, c.Events, EventWelcome)
	return c
}

// student connects and registers a student, waiting until observer sees a roster of size rosterLen.
func (th *testHub) student(t *testing.T, observer *Client, id, name string, rosterLen int) *Client {
	t.Helper()

	c := NewClient(id, "", RoleStudent)
	th.RegisterClient(c)
	mustEvent(t, c.Events, EventWelcome)
	c.Commands <- &Command{Kind: CommandRegisterStudent, Name: name}
	waitRoster(t, observer.Events, rosterLen)
	return c
}

func (th *testHub) ask(t *testing.T, teacher *Client, options ...string) {
	t.Helper()

	teacher.Commands <- &Command{
		Kind:     CommandAskQuestion,
		Question: QuestionSpec{Text: "Capital of France?", Options: options},
	}
	mustEvent(t, teacher.Events, EventNewQuestion)
}

func submit(t *testing.T, c *Client, answer string) {
	t.Helper()

	c.Commands <- &Command{Kind: CommandSubmitAnswer, Answer: answer}
	ev := mustEvent(t, c.Events, EventAnswerAccepted)
	if ev.Answer != answer {
		t.Fatalf("accepted answer = %q, want %q", ev.Answer, answer)
	}
}

func (th *testHub) waitHistory(t *testing.T, n int) []*store.PollRecord {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := th.history.List(context.Background())
		if err != nil {
			t.Fatalf("list history: %v", err)
		}
		if len(recs) == n {
			return recs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d history records", n)
	return nil
}
