package controller

import (
	"errors"
	"fmt"
)

// permanentError wraps an error to indicate it should not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", p.err)
}

func (p *permanentError) Unwrap() error {
	return p.err
}

// Is implements error matching for permanentError
func (p *permanentError) Is(target error) bool {
	_, ok := target.(*permanentError)
	return ok
}

// PermanentError wraps an error to indicate that it should not be retried.
// The controller settles the key without consulting the error policy.
func PermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanentError checks if an error is a permanent error.
func IsPermanentError(err error) bool {
	return errors.Is(err, &permanentError{})
}
