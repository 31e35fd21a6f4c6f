package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is a coded error. The cause is kept for errors.Is / errors.As.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
	Details any    `json:"details,omitempty"`
}

func NewError(code int64, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func Errorf(code int64, cause error, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), cause)
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) GetCode() int64 {
	return e.Code
}

func (e *Error) GetMessage() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) GetDetails() any {
	return e.Details
}

// CodeOf returns the code of the first *Error in err's tree, or 0.
func CodeOf(err error) int64 {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}
