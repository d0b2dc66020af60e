package salon

import (
	"errors"
	"fmt"
)

var (
	ErrSalonConflict = errors.New("salon already exists")
	ErrSalonNotFound = errors.New("salon not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
