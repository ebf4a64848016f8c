package gateway

import (
	"errors"
	"fmt"
)

// ErrBadRequest is wrapped by every InputError.
var ErrBadRequest = errors.New("invalid request parameters")

// InputError is a malformed or unsupported request input. It is returned
// before the archive is accessed.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *InputError) Unwrap() []error {
	return []error{ErrBadRequest, e.Err}
}
