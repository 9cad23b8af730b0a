package errorsx

import (
	"errors"
	"fmt"
)

// Error tags a failure with the reason code reported in logs and metrics.
// Its message is the message of the underlying error.
type Error struct {
	Reason ReasonCode
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with reason. The innermost reason wins: an error that
// already carries one is returned as is.
func Wrap(err error, reason ReasonCode) error {
	if err == nil || Reason(err) != ReasonUnknown {
		return err
	}
	return &Error{Reason: reason, Err: err}
}

func Errorf(reason ReasonCode, format string, args ...any) error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Reason returns the first reason found in err's chain, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var tagged *Error
	if err != nil && errors.As(err, &tagged) {
		return tagged.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
