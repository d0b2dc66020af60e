package query

import (
	"errors"
)

var (
	ErrSalonNotFound  = errors.New("salon not found")
	ErrNoActiveTicket = errors.New("no active ticket")
)
