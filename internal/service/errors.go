package service

import "errors"

var (
	// ErrUnauthenticated is returned when no actor identity is supplied
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidArgument is returned when a call is missing required fields
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced document does not exist
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when a job-card approval would drive
	// an inventory item negative
	ErrInsufficientStock = errors.New("insufficient stock")
)
