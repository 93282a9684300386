package service

import (
	"errors"
	"fmt"

	"docflow/internal/repository"
)

// Kind is the machine-readable error category surfaced to API clients.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindExtraction Kind = "extraction"
	KindStorage    Kind = "storage"
	KindCommit     Kind = "commit"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, ErrAlreadyCommitted)
// and kind sentinels work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var ErrAlreadyCommitted = &Error{Kind: KindConflict, Message: "document already committed"}

func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewExtractionError(reason string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: reason, Err: err}
}

func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func NewCommitError(message string, err error) *Error {
	return &Error{Kind: KindCommit, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable part of a service error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// fromRepo maps repository sentinels onto service kinds.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return NewNotFoundError("%s not found", what)
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConflict, Message: what + " was modified concurrently", Err: err}
	default:
		return NewStorageError("failed to access "+what, err)
	}
}
