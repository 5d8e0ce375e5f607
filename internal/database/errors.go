package database

import "errors"

var (
	// ErrURLNotFound is returned when no record matches the given short code
	// or long URL.
	ErrURLNotFound = errors.New("url not found")
	// ErrDuplicateLongURL is returned when an insert collides with an
	// existing record for the same long URL.
	ErrDuplicateLongURL = errors.New("long url exists")
)
