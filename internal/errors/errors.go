// Package errors defines the failure taxonomy shared by both pipelines.
//
// Ingestion swallows FeedUnavailable and OracleUnparseable failures per feed and per item,
// tailoring surfaces every one of them to the caller.
package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeFeedUnavailable     ErrorType = "FEED_UNAVAILABLE"
	ErrTypeOracleUnparseable   ErrorType = "ORACLE_UNPARSEABLE"
	ErrTypeNotFound            ErrorType = "NOT_FOUND"
	ErrTypeConstraintViolation ErrorType = "CONSTRAINT_VIOLATION"
	ErrTypeInvalidInput        ErrorType = "INVALID_INPUT"
	ErrTypeInternal            ErrorType = "INTERNAL"
)

type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func FeedUnavailable(message string, err error) *DomainError {
	return New(ErrTypeFeedUnavailable, message, err)
}

func OracleUnparseable(message string, err error) *DomainError {
	return New(ErrTypeOracleUnparseable, message, err)
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err)
}

func ConstraintViolation(message string, err error) *DomainError {
	return New(ErrTypeConstraintViolation, message, err)
}

func InvalidInput(message string, err error) *DomainError {
	return New(ErrTypeInvalidInput, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}

// Is reports whether any error in err's chain is a DomainError of the given type.
func Is(err error, errType ErrorType) bool {
	var domainErr *DomainError
	for err != nil {
		if !stderrors.As(err, &domainErr) {
			return false
		}
		if domainErr.Type == errType {
			return true
		}
		err = domainErr.Err
	}
	return false
}

// TypeOf returns the type of the outermost DomainError in err's chain, or an empty string.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}
