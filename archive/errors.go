package archive

import (
	"errors"
	"fmt"
)

// StorageError wraps any failure of the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage error: %s: %s", e.Op, e.Err.Error())
	}
	// StorageError shouldn't be constructed with a nil Err, but format it just in case.
	return fmt.Sprintf("storage error: %s: internal bug, incorrectly instantiated error object with nil", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapError wraps err into a *StorageError for the operation, unless it is
// nil or already one.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
