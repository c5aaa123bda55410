package common

import "errors"

var (
	// ErrEmptyTree is returned when an operation needs at least one record.
	ErrEmptyTree = errors.New("kd-tree is empty")

	// ErrInvalidCoordinate is returned for NaN or infinite coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate: must be a finite number")

	// ErrNotFound is returned when a lookup has no match.
	ErrNotFound = errors.New("not found")
)
