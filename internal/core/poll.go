package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/livepoll-server/internal/store"
)

// Question is an opened poll question. Immutable once opened.
type Question struct {
	Text     string
	Options  []string
	Duration time.Duration
	OpenedAt time.Time
	Deadline time.Time
}

// HasOption reports whether answer is one of the options.
func (q *Question) HasOption(answer string) bool {
	for _, opt := range q.Options {
		if opt == answer {
			return true
		}
	}
	return false
}

// validateQuestion rejects questions that cannot be answered.
func validateQuestion(spec QuestionSpec, duration time.Duration) error {
	if strings.TrimSpace(spec.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrMalformedQuestion)
	}
	if len(spec.Options) < 2 {
		return fmt.Errorf("%w: at least two options are required", ErrMalformedQuestion)
	}
	for _, opt := range spec.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: options must not be blank", ErrMalformedQuestion)
		}
	}
	if duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrMalformedQuestion)
	}
	return nil
}

// SessionState is the lifecycle position of a poll session.
type SessionState int

const (
	StateOpen SessionState = iota
	StateClosed
)

type response struct {
	studentID string
	name      string
	answer    string
}

// PollSession is the single active poll. It is owned by the hub goroutine.
type PollSession struct {
	Question Question

	expected  map[string]struct{}
	responses []response
	index     map[string]int // studentID -> position in responses

	state    SessionState
	reason   store.CloseReason
	closedAt time.Time

	gen  uint64
	stop func() bool
}

// newPollSession opens a session for the given respondent snapshot.
func newPollSession(q Question, respondents []Student) *PollSession {
	expected := make(map[string]struct{}, len(respondents))
	for _, s := range respondents {
		expected[s.ID] = struct{}{}
	}
	return &PollSession{
		Question: q,
		expected: expected,
		index:    make(map[string]int),
		state:    StateOpen,
	}
}

// State returns the current lifecycle state.
func (s *PollSession) State() SessionState {
	return s.state
}

// Submit stores studentID's answer. A resubmission overwrites the previous
// answer in place; rejected submissions leave the session untouched.
func (s *PollSession) Submit(studentID, name, answer string) error {
	if s.state != StateOpen {
		return ErrSessionNotOpen
	}
	if !s.Question.HasOption(answer) {
		return fmt.Errorf("%w: %q", ErrInvalidOption, answer)
	}
	if _, ok := s.expected[studentID]; !ok {
		return ErrUnknownRespondent
	}

	if i, ok := s.index[studentID]; ok {
		s.responses[i].name = name
		s.responses[i].answer = answer
		return nil
	}
	s.index[studentID] = len(s.responses)
	s.responses = append(s.responses, response{studentID: studentID, name: name, answer: answer})
	return nil
}

// Expected returns the size of the respondent set.
func (s *PollSession) Expected() int {
	return len(s.expected)
}

// Answered returns the number of stored answers.
func (s *PollSession) Answered() int {
	return len(s.responses)
}

// Complete reports whether every expected respondent has answered.
// An empty respondent set is never complete; only the deadline closes it.
func (s *PollSession) Complete() bool {
	return len(s.expected) > 0 && len(s.responses) == len(s.expected)
}

// Forget drops a departed respondent that has not answered yet.
// Students who already answered keep their slot and their answer.
func (s *PollSession) Forget(studentID string) bool {
	if s.state != StateOpen {
		return false
	}
	if _, answered := s.index[studentID]; answered {
		return false
	}
	if _, ok := s.expected[studentID]; !ok {
		return false
	}
	delete(s.expected, studentID)
	return true
}

// close performs the Open -> Closed transition. Only the first call wins.
func (s *PollSession) close(reason store.CloseReason, at time.Time) bool {
	if s.state != StateOpen {
		return false
	}
	s.state = StateClosed
	s.reason = reason
	s.closedAt = at
	return true
}
