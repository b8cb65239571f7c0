package model

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error classification surfaced to callers
type Code string

const (
	CodeInvalidInputMeta Code = "INVALID_INPUT_META"
	CodeSchemaValidation Code = "SCHEMA_VALIDATION_FAILED"
	CodeInvalidID        Code = "INVALID_ID"
	CodeDirCreateFailed  Code = "DIR_CREATE_FAILED"
	CodeSaveFailed       Code = "SAVE_FAILED"
	CodeLoadFailed       Code = "LOAD_FAILED"
	CodeNoMemoriesFound  Code = "NO_MEMORIES_FOUND"

	// CLI input errors
	CodeNoInput     Code = "NO_INPUT"
	CodeInvalidJSON Code = "INVALID_JSON"
)

var (
	ErrInvalidInputMeta = &Error{Code: CodeInvalidInputMeta}
	ErrSchemaValidation = &Error{Code: CodeSchemaValidation}
	ErrInvalidID        = &Error{Code: CodeInvalidID}
	ErrDirCreateFailed  = &Error{Code: CodeDirCreateFailed}
	ErrSaveFailed       = &Error{Code: CodeSaveFailed}
	ErrLoadFailed       = &Error{Code: CodeLoadFailed}
	ErrNoMemoriesFound  = &Error{Code: CodeNoMemoriesFound}
	ErrNoInput          = &Error{Code: CodeNoInput}
	ErrInvalidJSON      = &Error{Code: CodeInvalidJSON}
)

// Error carries a code and a human message, optionally wrapping the cause.
// errors.Is matches two Errors by code, so the Err* values above act as sentinels.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "" if there is none
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
