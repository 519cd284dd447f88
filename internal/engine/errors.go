package engine

import (
	"errors"
	"fmt"
)

// ExecutionErrorCode categorizes execution failures.
type ExecutionErrorCode string

const (
	// ErrCodeSubqueryFailed indicates a branch's store query failed.
	ErrCodeSubqueryFailed ExecutionErrorCode = "SUBQUERY_FAILED"

	// ErrCodeGetFailed indicates a batched point read failed.
	ErrCodeGetFailed ExecutionErrorCode = "GET_FAILED"
)

// ErrReadOnly is returned by writes when the store client has no
// transactions.
var ErrReadOnly = errors.New("engine: store client does not support writes")

// ExecutionError reports a store read that aborted a request. Branch is the
// failing branch index, or -1 when the read was not tied to one branch.
type ExecutionError struct {
	Code   ExecutionErrorCode
	Branch int
	Err    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Branch >= 0 {
		return fmt.Sprintf("%s: branch %d: %v", e.Code, e.Branch, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the store error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError returns true if err is (or wraps) an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
