// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate indicates a pending review item already exists for the subject.
var ErrDuplicate = errors.New("duplicate: pending review already exists for subject")

// ErrAlreadyResolved indicates a review item is no longer pending.
var ErrAlreadyResolved = errors.New("review item already resolved")

// ExecutionError indicates an action could not be produced at all. The
// decision and a failure audit record are still created.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return "execute " + e.Op + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
