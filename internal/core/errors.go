package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeAlreadyOpen       = "already_open"
	ErrCodeSessionNotOpen    = "session_not_open"
	ErrCodeInvalidOption     = "invalid_option"
	ErrCodeUnknownRespondent = "unknown_respondent"
	ErrCodeMalformedQuestion = "malformed_question"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeStudentNotFound   = "student_not_found"
	ErrCodeInternal          = "internal"
)

var (
	ErrAlreadyOpen       = errors.New("a poll is already open")
	ErrSessionNotOpen    = errors.New("no poll is open")
	ErrInvalidOption     = errors.New("answer is not one of the options")
	ErrUnknownRespondent = errors.New("not a respondent of the open poll")
	ErrMalformedQuestion = errors.New("malformed question")
	ErrUnauthorized      = errors.New("not allowed for this role")
	ErrBadRequest        = errors.New("bad request")
	ErrStudentNotFound   = errors.New("student not found")
	ErrHubStopped        = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.err
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyOpen, ErrCodeAlreadyOpen},
	{ErrSessionNotOpen, ErrCodeSessionNotOpen},
	{ErrInvalidOption, ErrCodeInvalidOption},
	{ErrUnknownRespondent, ErrCodeUnknownRespondent},
	{ErrMalformedQuestion, ErrCodeMalformedQuestion},
	{ErrUnauthorized, ErrCodeUnauthorized},
	{ErrBadRequest, ErrCodeBadRequest},
	{ErrStudentNotFound, ErrCodeStudentNotFound},
}

// toCoreError maps a domain error onto its wire code. Unknown errors become internal.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return &CoreError{Code: ec.code, Message: err.Error(), err: err}
		}
	}
	return &CoreError{Code: ErrCodeInternal, Message: "internal error", err: err}
}
