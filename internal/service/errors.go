package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is missing or owned by someone else
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate username)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when credentials are wrong or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when an authenticated account may not act
	ErrForbidden = errors.New("forbidden")

	// ErrReportFailed is returned when a dataset report cannot be rendered
	ErrReportFailed = errors.New("report generation failed")
)
