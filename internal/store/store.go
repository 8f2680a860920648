package store

import (
	"context"
	"time"
)

// CloseReason records why a poll session stopped accepting answers.
type CloseReason string

const (
	CloseReasonTimeout         CloseReason = "timeout"
	CloseReasonAllAnswered     CloseReason = "all_answered"
	CloseReasonClosedByTeacher CloseReason = "closed_by_teacher"
	CloseReasonShutdown        CloseReason = "shutdown"
)

// Response is one respondent's final answer, keyed by display name.
type Response struct {
	Name   string
	Answer string
}

// OptionCount is the number of respondents that picked an option.
type OptionCount struct {
	Option string
	Count  int
}

// PollRecord is the immutable snapshot of a closed poll session.
type PollRecord struct {
	ID        string
	Question  string
	Options   []string
	Responses []Response // arrival order
	Tally     []OptionCount
	Reason    CloseReason
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// HistoryStore is an append-only log of closed poll sessions.
type HistoryStore interface {
	// Append stores a closed session. Records are kept in append order.
	Append(ctx context.Context, rec *PollRecord) error

	// List returns the retained history, oldest first.
	List(ctx context.Context) ([]*PollRecord, error)

	// Close releases underlying resources.
	Close() error
}
