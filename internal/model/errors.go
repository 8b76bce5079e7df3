package model

import "errors"

var (
	// ErrMissingFile is returned when a required input file is absent.
	ErrMissingFile = errors.New("missing file")
	// ErrMissingData is returned when required logical entries are absent.
	ErrMissingData = errors.New("missing data")
	// ErrInvalidData is returned when a value is present but out of domain.
	ErrInvalidData = errors.New("invalid data")
	// ErrStorage is returned when the task ledger is unreadable or unwritable.
	ErrStorage = errors.New("storage failure")
	// ErrConfiguration is returned when the given options contradict each other.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
)
