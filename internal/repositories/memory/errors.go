package memory

import (
	"errors"
	"fmt"
)

// Error implements repositories.RepositoryError for the in-memory store.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NotFound builds a missing-row error.
func NotFound(op string) *Error {
	return &Error{op: op, err: errors.New("not found"), notFound: true}
}

// Conflict builds a uniqueness violation error.
func Conflict(op string) *Error {
	return &Error{op: op, err: errors.New("duplicate key"), conflict: true}
}

// Unavailable builds a transient failure error, used to simulate remote outages.
func Unavailable(op string, err error) *Error {
	if err == nil {
		err = errors.New("unavailable")
	}
	return &Error{op: op, err: err, unavailable: true}
}
