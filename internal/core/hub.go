package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/store"
	"github.com/vovakirdan/livepoll-server/internal/store/memory"
	"github.com/vovakirdan/livepoll-server/internal/utils"
)

const historyTimeout = 5 * time.Second

// RespondentPolicy decides what a disconnect does to an open poll.
type RespondentPolicy int

const (
	// PolicyFrozen keeps departed students in the expected set; the deadline closes the poll.
	PolicyFrozen RespondentPolicy = iota
	// PolicyShrink drops departed students that have not answered yet.
	PolicyShrink
)

// Mirror receives poll lifecycle notifications. Implementations must not block.
type Mirror interface {
	PollOpened(q Question)
	PollClosed(rec *store.PollRecord)
}

// Scheduler arms fire after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fire func()) (stop func() bool)

func timerScheduler(d time.Duration, fire func()) func() bool {
	return time.AfterFunc(d, fire).Stop
}

// Status is a read-only view of the hub for REST callers.
type Status struct {
	State       string
	Question    *Question
	Expected    int
	Answered    int
	Connections int
	Students    int
}

type inbound struct {
	client *Client
	cmd    *Command
}

// Hub coordinates the classroom: roster, the active poll, chat and history.
// All state is owned by the goroutine running Run.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbox      chan inbound
	expired    chan uint64
	calls      chan func()
	done       chan struct{}

	conns   *audience
	roster  *Roster
	chat    *ChatRelay
	poll    *PollSession
	pollGen uint64

	history         store.HistoryStore
	mirror          Mirror
	policy          RespondentPolicy
	defaultDuration time.Duration
	schedule        Scheduler
	now             func() time.Time
	log             *zerolog.Logger
}

// Option customizes a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMirror publishes poll lifecycle events to m.
func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

// WithRespondentPolicy sets the disconnect policy.
func WithRespondentPolicy(p RespondentPolicy) Option {
	return func(h *Hub) { h.policy = p }
}

// WithDefaultDuration sets the poll duration used when a question omits one.
func WithDefaultDuration(d time.Duration) Option {
	return func(h *Hub) { h.defaultDuration = d }
}

// WithChatBacklog sets how many chat messages are replayed to new connections.
func WithChatBacklog(n int) Option {
	return func(h *Hub) { h.chat = NewChatRelay(n) }
}

// WithScheduler replaces the deadline timer implementation.
func WithScheduler(s Scheduler) Option {
	return func(h *Hub) { h.schedule = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a new classroom hub. A nil history keeps polls in memory.
func NewHub(history store.HistoryStore, opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		inbox:           make(chan inbound, 256),
		expired:         make(chan uint64, 1),
		calls:           make(chan func()),
		done:            make(chan struct{}),
		conns:           newAudience(),
		roster:          NewRoster(),
		chat:            NewChatRelay(50),
		history:         history,
		defaultDuration: 60 * time.Second,
		schedule:        timerScheduler,
		now:             time.Now,
		log:             &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.history == nil {
		h.history = memory.New(0)
	}
	return h
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case in := <-h.inbox:
			h.handleCommand(ctx, in.client, in.cmd)
		case gen := <-h.expired:
			h.handleExpired(ctx, gen)
		case fn := <-h.calls:
			fn()
		}
	}
}

// RegisterClient admits a connection. Its Commands are consumed until it is dropped.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient drops a connection. Safe to call for an already kicked client.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Roster returns the registered students in registration order.
func (h *Hub) Roster(ctx context.Context) ([]Student, error) {
	var out []Student
	err := h.call(ctx, func() { out = h.roster.Snapshot() })
	return out, err
}

// Status returns the current poll state and connection counts.
func (h *Hub) Status(ctx context.Context) (Status, error) {
	var st Status
	err := h.call(ctx, func() {
		st = Status{
			State:       "idle",
			Connections: h.conns.len(),
			Students:    h.roster.Len(),
		}
		if h.poll != nil {
			q := h.poll.Question
			st.State = "open"
			st.Question = &q
			st.Expected = h.poll.Expected()
			st.Answered = h.poll.Answered()
		}
	})
	return st, err
}

// History returns the closed polls, oldest first.
func (h *Hub) History(ctx context.Context) ([]*store.PollRecord, error) {
	return h.history.List(ctx)
}

// call runs fn on the hub goroutine and waits for it.
func (h *Hub) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(finished) }:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump forwards a client's commands into the hub queue, preserving their order.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- inbound{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	if !h.conns.add(c) {
		h.log.Warn().Str("client_id", c.ID).Msg("duplicate connection id rejected")
		close(c.done)
		close(c.Events)
		return
	}
	go h.pump(c)

	c.send(&Event{Kind: EventWelcome, ClientID: c.ID, Role: c.Role})
	c.send(&Event{Kind: EventStudentList, Students: h.roster.Snapshot()})
	if backlog := h.chat.Backlog(); len(backlog) > 0 {
		c.send(&Event{Kind: EventChatBacklog, Backlog: backlog})
	}
	h.log.Debug().Str("client_id", c.ID).Str("role", string(c.Role)).Msg("client connected")
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.conns.has(c) {
		return
	}
	h.drop(c)
	h.log.Debug().Str("client_id", c.ID).Msg("client disconnected")

	if _, ok := h.roster.Remove(c.ID); !ok {
		return
	}
	h.broadcastRoster()

	if h.policy == PolicyShrink && h.poll != nil && h.poll.Forget(c.ID) {
		h.log.Debug().Str("client_id", c.ID).Int("expected", h.poll.Expected()).Msg("respondent dropped from open poll")
		if h.poll.Complete() {
			h.closePoll(context.Background(), store.CloseReasonAllAnswered)
		}
	}
}

// drop removes c from the audience and releases its channels.
func (h *Hub) drop(c *Client) {
	h.conns.remove(c)
	close(c.done)
	close(c.Events)
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if !h.conns.has(c) {
		// kicked or disconnected while the command was queued
		return
	}
	if err := authorize(c.Role, cmd.Kind); err != nil {
		h.reject(c, cmd.Kind, err)
		return
	}

	var err error
	switch cmd.Kind {
	case CommandRegisterStudent:
		err = h.registerStudent(c, cmd.Name)
	case CommandAskQuestion:
		err = h.openPoll(cmd.Question)
	case CommandSubmitAnswer:
		err = h.submitAnswer(ctx, c, cmd.Answer)
	case CommandSendChat:
		err = h.relayChat(c, cmd.Chat)
	case CommandGetHistory:
		err = h.sendHistory(ctx, c)
	case CommandKickStudent:
		err = h.kick(cmd.TargetID)
	case CommandClosePoll:
		if h.poll == nil {
			err = ErrSessionNotOpen
		} else {
			h.closePoll(ctx, store.CloseReasonClosedByTeacher)
		}
	default:
		err = fmt.Errorf("%w: unknown command", ErrBadRequest)
	}
	if err != nil {
		h.reject(c, cmd.Kind, err)
	}
}

func (h *Hub) reject(c *Client, kind CommandKind, err error) {
	ce := toCoreError(err)
	h.log.Debug().Str("client_id", c.ID).Str("command", kind.String()).Str("code", ce.Code).Msg("command rejected")
	c.send(&Event{Kind: EventError, Error: ce})
}

func (h *Hub) registerStudent(c *Client, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	h.roster.Register(c.ID, name, c.ConnectedAt)
	c.Name = name
	h.log.Info().Str("client_id", c.ID).Str("name", name).Msg("student registered")
	h.broadcastRoster()
	return nil
}

func (h *Hub) openPoll(spec QuestionSpec) error {
	if h.poll != nil {
		return ErrAlreadyOpen
	}
	duration := h.defaultDuration
	if spec.Duration != nil {
		duration = *spec.Duration
	}
	if err := validateQuestion(spec, duration); err != nil {
		return err
	}

	now := h.now()
	q := Question{
		Text:     spec.Text,
		Options:  append([]string(nil), spec.Options...),
		Duration: duration,
		OpenedAt: now,
		Deadline: now.Add(duration),
	}
	respondents := h.roster.Snapshot()
	if spec.TotalStudents > 0 && spec.TotalStudents != len(respondents) {
		h.log.Debug().Int("total_students", spec.TotalStudents).Int("roster", len(respondents)).Msg("advisory student count differs from roster")
	}

	s := newPollSession(q, respondents)
	h.pollGen++
	s.gen = h.pollGen
	gen := s.gen
	s.stop = h.schedule(duration, func() {
		select {
		case h.expired <- gen:
		case <-h.done:
		}
	})
	h.poll = s

	h.log.Info().Str("question", q.Text).Int("options", len(q.Options)).Int("respondents", len(respondents)).Dur("duration", duration).Msg("poll opened")
	qc := q
	h.conns.broadcast(&Event{Kind: EventNewQuestion, Question: &qc})
	if h.mirror != nil {
		h.mirror.PollOpened(q)
	}
	return nil
}

func (h *Hub) submitAnswer(ctx context.Context, c *Client, answer string) error {
	if h.poll == nil {
		return ErrSessionNotOpen
	}
	name := c.Name
	if st, ok := h.roster.Get(c.ID); ok {
		name = st.Name
	}
	if err := h.poll.Submit(c.ID, name, answer); err != nil {
		return err
	}
	c.send(&Event{Kind: EventAnswerAccepted, Answer: answer})

	if h.poll.Complete() {
		h.closePoll(ctx, store.CloseReasonAllAnswered)
	}
	return nil
}

func (h *Hub) handleExpired(ctx context.Context, gen uint64) {
	if h.poll == nil || h.poll.gen != gen {
		h.log.Debug().Uint64("generation", gen).Msg("stale poll deadline ignored")
		return
	}
	h.closePoll(ctx, store.CloseReasonTimeout)
}

// closePoll closes the active session exactly once, then records and publishes it.
func (h *Hub) closePoll(ctx context.Context, reason store.CloseReason) {
	s := h.poll
	if s == nil || !s.close(reason, h.now()) {
		return
	}
	if s.stop != nil {
		s.stop()
	}
	h.poll = nil

	results := Aggregate(s)
	rec := &store.PollRecord{
		ID:        utils.NewID(),
		Question:  s.Question.Text,
		Options:   s.Question.Options,
		Responses: results.Responses(),
		Tally:     Tally(s.Question.Options, results),
		Reason:    reason,
		OpenedAt:  s.Question.OpenedAt,
		ClosedAt:  s.closedAt,
	}

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if err := h.history.Append(appendCtx, rec); err != nil {
		h.log.Error().Err(err).Str("poll_id", rec.ID).Msg("failed to append poll history")
	}

	h.log.Info().Str("poll_id", rec.ID).Str("reason", string(reason)).Int("responses", len(results)).Msg("poll closed")
	h.conns.broadcast(&Event{Kind: EventPollResults, Results: results})
	if h.mirror != nil {
		h.mirror.PollClosed(rec)
	}
}

func (h *Hub) relayChat(c *Client, msg ChatMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return fmt.Errorf("%w: text is required", ErrBadRequest)
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = c.Name
	}
	if from == "" {
		from = c.ID
	}
	out := ChatMessage{From: from, Text: text, SentAt: h.now()}
	h.chat.Post(out)
	h.conns.broadcast(&Event{Kind: EventChatMessage, Chat: out})
	return nil
}

func (h *Hub) sendHistory(ctx context.Context, c *Client) error {
	listCtx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	records, err := h.history.List(listCtx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list poll history")
		return err
	}
	c.send(&Event{Kind: EventHistory, History: records})
	return nil
}

// kick notifies the student, drops its connection and removes it from the roster.
// An open poll keeps the student in its expected set.
func (h *Hub) kick(id string) error {
	st, ok := h.roster.Get(id)
	if !ok {
		return ErrStudentNotFound
	}
	if target, ok := h.conns.get(id); ok {
		target.kicked = true
		target.send(&Event{Kind: EventKicked})
		h.drop(target)
	}
	h.roster.Remove(id)
	h.log.Info().Str("client_id", id).Str("name", st.Name).Msg("student kicked")
	h.broadcastRoster()
	return nil
}

func (h *Hub) broadcastRoster() {
	h.conns.broadcast(&Event{Kind: EventStudentList, Students: h.roster.Snapshot()})
}

// shutdown cancels the pending deadline and releases every connection.
func (h *Hub) shutdown(ctx context.Context) {
	if h.poll != nil {
		h.closePoll(ctx, store.CloseReasonShutdown)
	}
	for _, c := range h.conns.clients {
		h.drop(c)
	}
	h.log.Info().Msg("hub stopped")
}

// authorize enforces the role capability table.
func authorize(role Role, kind CommandKind) error {
	switch kind {
	case CommandSendChat:
		return nil
	case CommandRegisterStudent, CommandSubmitAnswer:
		if role == RoleStudent {
			return nil
		}
	case CommandAskQuestion, CommandGetHistory, CommandKickStudent, CommandClosePoll:
		if role == RoleTeacher {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, kind)
}

// IsStopped reports whether Run has returned.
func (h *Hub) IsStopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
