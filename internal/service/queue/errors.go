package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSalonNotFound      = errors.New("salon not found")
	ErrSalonOffline       = errors.New("salon is not accepting bookings")
	ErrActiveTicketExists = errors.New("user already has an active ticket")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrChairBusy          = errors.New("chair is occupied")
	ErrStaffBusy          = errors.New("staff member is serving another ticket")
	ErrNotTicketOwner     = errors.New("ticket belongs to another user")
)

// ValidationError reports a request field that cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
