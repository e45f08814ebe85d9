package repositories

import (
	"errors"
	"fmt"
)

type ErrNotFound struct {
	Database string
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s/%s not found", e.Database, e.Key)
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
