package model

import "errors"

var (
	// ErrActivityNotFound is returned when an activity record is not found.
	ErrActivityNotFound = errors.New("activity record not found")
)
