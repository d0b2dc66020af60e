package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrChairOccupied is returned when a second serving ticket would be
	// placed on the same chair.
	ErrChairOccupied = errors.New("chair occupied")
	ErrStaffOccupied = errors.New("staff member occupied")
)
