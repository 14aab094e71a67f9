package core

import "fmt"

// Error is a framework error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Common framework errors.
var (
	ErrInvalidPeriod    = &Error{Code: "INVALID_PERIOD", Message: "period must be positive"}
	ErrDuplicateCommand = &Error{Code: "DUPLICATE_COMMAND", Message: "read command already registered"}
	ErrUnknownCommand   = &Error{Code: "UNKNOWN_COMMAND", Message: "no such read command"}
	ErrUnknownTaskType  = &Error{Code: "UNKNOWN_TASK_TYPE", Message: "no constructor registered for task type"}
	ErrAlreadyStarted   = &Error{Code: "ALREADY_STARTED", Message: "task already started"}
)

// FailFast panics with an error (fail-fast principle)
func FailFast(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w", err))
	}
}
