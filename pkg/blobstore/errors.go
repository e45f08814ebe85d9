package blobstore

import (
	"errors"
	"fmt"
)

type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("key %s not found", e.Key)
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// TransportError is returned once a request has failed on every attempt.
type TransportError struct {
	Op         string
	Key        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed after %d attempts: http status %d: %v", e.Op, e.Key, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Key, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
