package storage

import (
	"errors"
	"fmt"
)

// InvalidValueError is returned when a request body is not usable for the
// operation, e.g. malformed JSON or a collection item that is not an object.
type InvalidValueError struct {
	Key string
	Err error
}

func (e *InvalidValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid value for %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("invalid value for %s", e.Key)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

func IsInvalidValue(err error) bool {
	var e *InvalidValueError
	return errors.As(err, &e)
}
